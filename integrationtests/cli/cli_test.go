package cli_test

import (
	"fmt"
	"io/ioutil"
	mrand "math/rand"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
)

var _ = Describe("rxlink", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = ioutil.TempDir("", "rxlink")
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	run := func(args ...string) *gexec.Session {
		session, err := gexec.Start(exec.Command(rxlinkPath, args...), GinkgoWriter, GinkgoWriter)
		Expect(err).ToNot(HaveOccurred())
		return session
	}

	It("dumps the default config", func() {
		session := run("dump-config")
		Eventually(session).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say("streams:"))
		Expect(session.Out).To(gbytes.Say("refresh_interval: 350ms"))
	})

	It("rejects invalid configs", func() {
		session := run("--config-body", "interfaces: []\nbogus: 1\n", "dump-config")
		Eventually(session).Should(gexec.Exit(1))
		Expect(session.Err).To(gbytes.Say("could not parse config"))
	})

	It("simulates a lossy link and writes a snapshot frame", func() {
		framesPath := filepath.Join(tmpDir, "frames.bin")
		session := run(
			"--config-body", "interfaces:\n  - name: wlan0\n    link: 0\n  - name: wlan1\n    link: 0\n",
			"simulate",
			"--payloads", "500",
			"--loss", "0.1",
			"--reorder", "0.05",
			"--frames-out", framesPath,
		)
		Eventually(session, 30*time.Second).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say("rx ec buffer"))
		Expect(session.Out).To(gbytes.Say("blocks reconstructed"))

		session = run("dump-frames", framesPath)
		Eventually(session).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say(`snapshot \d+ of session`))
		Expect(session.Out).To(gbytes.Say("0 payload frames"))
	})

	It("serves metrics", func() {
		port := 20000 + int(mrand.Int31n(10000))
		framesPath := filepath.Join(tmpDir, "frames.bin")
		session := run(
			"serve",
			"--metrics-listen", fmt.Sprintf("127.0.0.1:%d", port),
			"--duration", "3s",
			"--loss", "0.05",
			"--frames-out", framesPath,
		)
		defer session.Kill()
		url := fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
		Eventually(func() (string, error) {
			resp, err := http.Get(url)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			body, err := ioutil.ReadAll(resp.Body)
			return string(body), err
		}, 2*time.Second, 50*time.Millisecond).Should(ContainSubstring("rxlink_stream_packets_total"))
		Eventually(session, 5*time.Second).Should(gexec.Exit(0))

		session = run("dump-frames", framesPath)
		Eventually(session).Should(gexec.Exit(0))
		Expect(session.Out).To(gbytes.Say("snapshot"))
	})
})
