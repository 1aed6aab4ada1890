package radiolink

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openfpv/radiolink/internal/protocol"
)

//go:generate genny -in $GOFILE -out streams_map_incoming_sorter.go gen "item=blockSorterI Item=BlockSorter"
type incomingItemsMap struct {
	mutex sync.RWMutex

	streams map[protocol.StreamID]item

	maxNumStreams int

	newStream func(protocol.StreamID) (item, error)

	closeErr error
}

func newIncomingItemsMap(
	maxNumStreams int,
	newStream func(protocol.StreamID) (item, error),
) *incomingItemsMap {
	return &incomingItemsMap{
		streams:       make(map[protocol.StreamID]item),
		maxNumStreams: maxNumStreams,
		newStream:     newStream,
	}
}

// GetOrOpenStream returns the stream, creating it on its first packet
func (m *incomingItemsMap) GetOrOpenStream(id protocol.StreamID) (item, error) {
	m.mutex.RLock()
	if m.closeErr != nil {
		m.mutex.RUnlock()
		return nil, m.closeErr
	}
	if s, ok := m.streams[id]; ok {
		m.mutex.RUnlock()
		return s, nil
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	// another goroutine may have opened it in between
	if s, ok := m.streams[id]; ok {
		return s, nil
	}
	if m.closeErr != nil {
		return nil, m.closeErr
	}
	if len(m.streams) >= m.maxNumStreams {
		return nil, fmt.Errorf("too many open streams, refusing stream %d (limit: %d)", id, m.maxNumStreams)
	}
	s, err := m.newStream(id)
	if err != nil {
		return nil, err
	}
	m.streams[id] = s
	return s, nil
}

// GetStream returns nil if the stream was never opened
func (m *incomingItemsMap) GetStream(id protocol.StreamID) item {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.streams[id]
}

func (m *incomingItemsMap) DeleteStream(id protocol.StreamID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.streams[id]; !ok {
		return fmt.Errorf("Tried to delete unknown stream %d", id)
	}
	delete(m.streams, id)
	return nil
}

// ForEach calls f for every open stream, in increasing stream ID order
func (m *incomingItemsMap) ForEach(f func(protocol.StreamID, item)) {
	m.mutex.RLock()
	ids := make([]protocol.StreamID, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	streams := make([]item, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		streams = append(streams, m.streams[id])
	}
	m.mutex.RUnlock()

	for i, id := range ids {
		f(id, streams[i])
	}
}

func (m *incomingItemsMap) CloseWithError(err error) {
	m.mutex.Lock()
	m.closeErr = err
	for _, str := range m.streams {
		str.closeForShutdown(err)
	}
	m.mutex.Unlock()
}
