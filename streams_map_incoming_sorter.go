// This file was automatically generated by genny.
// Any changes will be lost if this file is regenerated.
// see https://github.com/cheekybits/genny

package radiolink

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openfpv/radiolink/internal/protocol"
)

type incomingBlockSortersMap struct {
	mutex sync.RWMutex

	streams map[protocol.StreamID]blockSorterI

	maxNumStreams int

	newStream func(protocol.StreamID) (blockSorterI, error)

	closeErr error
}

func newIncomingBlockSortersMap(
	maxNumStreams int,
	newStream func(protocol.StreamID) (blockSorterI, error),
) *incomingBlockSortersMap {
	return &incomingBlockSortersMap{
		streams:       make(map[protocol.StreamID]blockSorterI),
		maxNumStreams: maxNumStreams,
		newStream:     newStream,
	}
}

// GetOrOpenStream returns the stream, creating it on its first packet
func (m *incomingBlockSortersMap) GetOrOpenStream(id protocol.StreamID) (blockSorterI, error) {
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
func (m *incomingBlockSortersMap) GetStream(id protocol.StreamID) blockSorterI {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.streams[id]
}

func (m *incomingBlockSortersMap) DeleteStream(id protocol.StreamID) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.streams[id]; !ok {
		return fmt.Errorf("Tried to delete unknown stream %d", id)
	}
	delete(m.streams, id)
	return nil
}

// ForEach calls f for every open stream, in increasing stream ID order
func (m *incomingBlockSortersMap) ForEach(f func(protocol.StreamID, blockSorterI)) {
	m.mutex.RLock()
	ids := make([]protocol.StreamID, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	streams := make([]blockSorterI, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		streams = append(streams, m.streams[id])
	}
	m.mutex.RUnlock()

	for i, id := range ids {
		f(id, streams[i])
	}
}

func (m *incomingBlockSortersMap) CloseWithError(err error) {
	m.mutex.Lock()
	m.closeErr = err
	for _, str := range m.streams {
		str.closeForShutdown(err)
	}
	m.mutex.Unlock()
}
