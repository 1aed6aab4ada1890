package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/openfpv/radiolink/integrationtests/tools/toylink"
	"github.com/openfpv/radiolink/internal/fec/block"
	"github.com/openfpv/radiolink/internal/stats"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	colAlignments := []int{tablewriter.ALIGN_LEFT}
	for i := 1; i < len(header); i++ {
		colAlignments = append(colAlignments, tablewriter.ALIGN_RIGHT)
	}
	table.SetColumnAlignment(colAlignments)
	return table
}

func printSummary(w io.Writer, res toylink.Result, ec block.ReceiverStats, s *stats.Snapshot) {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	i := func(v int) string { return strconv.Itoa(v) }

	table := newTable(w, "link", "packets")
	table.SetCaption(true, fmt.Sprintf("%d payloads sent.", res.Link.Payloads))
	table.AppendBulk([][]string{
		{"sent", i(res.Link.Packets)},
		{"delivered", i(res.Link.Delivered)},
		{"lost", i(res.Link.Lost)},
		{"duplicated", i(res.Link.Duplicated)},
		{"reordered", i(res.Link.Reordered)},
		{"bad radio CRC", i(res.Link.BadCRC)},
		{"corrupted", i(res.Link.Corrupted)},
	})
	table.Render()

	table = newTable(w, "receiver", "packets")
	table.AppendBulk([][]string{
		{"new", i(res.New)},
		{"duplicate", i(res.Duplicate)},
		{"error", i(res.Error)},
		{"output", i(res.Output)},
		{"reconstructed", i(res.Reconstructed)},
		{"mismatched", i(res.Mismatched)},
	})
	table.Render()

	table = newTable(w, "rx ec buffer", "count")
	table.AppendBulk([][]string{
		{"received", u(ec.Received)},
		{"invalid", u(ec.InvalidPackets)},
		{"CRC failures", u(ec.CRCFailures)},
		{"duplicates", u(ec.DuplicatePackets)},
		{"dropped old", u(ec.DroppedOld)},
		{"dropped before start", u(ec.DroppedBeforeStart)},
		{"blocks clean", u(ec.CleanBlocks)},
		{"blocks reconstructed", u(ec.ReconstructedBlocks)},
		{"decode failures", u(ec.DecodeFailures)},
		{"skipped", u(ec.Skipped)},
		{"restarts", u(ec.Restarts)},
		{"gaps", u(ec.Gaps)},
	})
	table.Render()

	if s != nil {
		printInterfaces(w, s)
	}
}

func printInterfaces(w io.Writer, s *stats.Snapshot) {
	table := newTable(w, "interface", "link", "rx packets", "bad", "lost", "quality [%]", "relative [%]", "dBm")
	for n, in := range s.Interfaces {
		dbm := "-"
		if in.LastDbm != stats.NoDbm {
			dbm = strconv.Itoa(in.LastDbm)
		}
		table.Append([]string{
			strconv.Itoa(n),
			strconv.Itoa(in.Link),
			strconv.FormatUint(in.RxPackets, 10),
			strconv.FormatUint(in.RxPacketsBad, 10),
			strconv.FormatUint(in.RxPacketsLost, 10),
			strconv.Itoa(in.RxQuality),
			strconv.Itoa(in.RxRelativeQuality),
			dbm,
		})
	}
	table.Render()
}
