package metrics

import (
	"context"
	"os"
	"strings"

	"github.com/openfpv/radiolink/internal/utils"
	"github.com/prometheus/client_golang/prometheus"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	logger := utils.DefaultLogger

	It("validates listen addresses", func() {
		Expect(ValidateListenAddress("127.0.0.1:9100")).To(BeTrue())
		Expect(ValidateListenAddress(":9100")).To(BeTrue())
		Expect(ValidateListenAddress("[::1]:9100")).To(BeTrue())
		Expect(ValidateListenAddress("localhost:9100")).To(BeTrue())
		Expect(ValidateListenAddress("")).To(BeFalse())
		Expect(ValidateListenAddress("127.0.0.1")).To(BeFalse())
		Expect(ValidateListenAddress("127.0.0.1:")).To(BeFalse())
	})

	It("validates paths", func() {
		Expect(ValidateMetricsPath("/metrics")).To(BeTrue())
		Expect(ValidateMetricsPath("/rx/metrics")).To(BeTrue())
		Expect(ValidateMetricsPath("")).To(BeFalse())
		Expect(ValidateMetricsPath("metrics")).To(BeFalse())
		Expect(ValidateMetricsPath("/met rics")).To(BeFalse())
		Expect(ValidateMetricsPath("/" + strings.Repeat("a", 50))).To(BeFalse())
	})

	Context("environment overrides", func() {
		AfterEach(func() {
			os.Unsetenv(listenEnv)
			os.Unsetenv(pathEnv)
		})

		It("keeps the values without environment", func() {
			listen, path := EnvironmentOverride(ListenDefault, PathDefault, logger)
			Expect(listen).To(Equal(ListenDefault))
			Expect(path).To(Equal(PathDefault))
		})

		It("uses valid overrides", func() {
			os.Setenv(listenEnv, ":9200")
			os.Setenv(pathEnv, "/prom")
			listen, path := EnvironmentOverride(ListenDefault, PathDefault, logger)
			Expect(listen).To(Equal(":9200"))
			Expect(path).To(Equal("/prom"))
		})

		It("ignores invalid overrides", func() {
			os.Setenv(listenEnv, "nope")
			os.Setenv(pathEnv, "prom")
			listen, path := EnvironmentOverride(ListenDefault, PathDefault, logger)
			Expect(listen).To(Equal(ListenDefault))
			Expect(path).To(Equal(PathDefault))
		})
	})

	It("stops serving when the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		errChan := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			errChan <- Serve(ctx, "127.0.0.1:0", PathDefault, prometheus.NewRegistry(), logger)
		}()
		cancel()
		Eventually(errChan).Should(Receive())
	})
})
