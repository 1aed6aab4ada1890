package benchmark

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/config"
	"github.com/onsi/ginkgo/types"
)

const (
	transferRateLabel = "transfer rate [MB/s]"
	deliveryLabel     = "delivered [%]"
	testReedSolomon   = "Reed-Solomon 8+4"
	testXOR           = "XOR 8+1"
	testNoFEC         = "no FEC"
)

type measurementSeries map[string]map[string]*types.SpecMeasurement

type myReporter struct {
	Reporter

	results map[string]measurementSeries
}

var _ Reporter = &myReporter{}

func (r *myReporter) SpecSuiteWillBegin(config.GinkgoConfigType, *types.SuiteSummary) {}
func (r *myReporter) BeforeSuiteDidRun(*types.SetupSummary)                           {}
func (r *myReporter) SpecWillRun(*types.SpecSummary)                                  {}
func (r *myReporter) AfterSuiteDidRun(*types.SetupSummary)                            {}
func (r *myReporter) SpecSuiteDidEnd(*types.SuiteSummary)                             {}

func (r *myReporter) SpecDidComplete(specSummary *types.SpecSummary) {
	if !specSummary.IsMeasurement {
		return
	}
	test := specSummary.ComponentTexts[4]
	cond := specSummary.ComponentTexts[2]
	for _, label := range []string{transferRateLabel, deliveryLabel} {
		if measurement, ok := specSummary.Measurements[label]; ok {
			r.addResult(label, cond, test, measurement)
		}
	}
}

func (r *myReporter) addResult(label, cond, test string, measurement *types.SpecMeasurement) {
	if r.results == nil {
		r.results = make(map[string]measurementSeries)
	}
	if _, ok := r.results[label]; !ok {
		r.results[label] = make(measurementSeries)
	}
	if _, ok := r.results[label][cond]; !ok {
		r.results[label][cond] = make(map[string]*types.SpecMeasurement)
	}
	r.results[label][cond][test] = measurement
}

func (r *myReporter) printResult() {
	r.printTable(transferRateLabel, "All values in MB/s.")
	r.printTable(deliveryLabel, "Share of the payloads output, in percent.")
}

func (r *myReporter) printTable(label, unit string) {
	table := tablewriter.NewWriter(os.Stdout)
	header := []string{"", testReedSolomon, testXOR, testNoFEC}
	table.SetHeader(header)
	table.SetCaption(true, fmt.Sprintf("Based on %d samples of %d payloads of %d bytes.\n%s", samples, payloads, payloadSize, unit))
	table.SetAutoFormatHeaders(false)
	colAlignments := []int{tablewriter.ALIGN_LEFT}
	for i := 1; i <= len(header); i++ {
		colAlignments = append(colAlignments, tablewriter.ALIGN_RIGHT)
	}
	table.SetColumnAlignment(colAlignments)

	for _, cond := range conditions {
		data := make([]string, len(header))
		data[0] = cond.Description

		for i := 1; i < len(header); i++ {
			measurement := r.results[label][cond.Description][header[i]]
			var out string
			if measurement == nil {
				out = "-"
			} else {
				if len(measurement.Results) <= 1 {
					out = fmt.Sprintf(" %.2f", measurement.Average)
				} else {
					out = fmt.Sprintf("%.2f ± %.2f", measurement.Average, measurement.StdDeviation)
				}
			}
			data[i] = out
		}
		table.Append(data)
	}
	table.Render()
}
