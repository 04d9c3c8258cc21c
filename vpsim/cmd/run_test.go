package cmd

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
)

var _ = Describe("run", func() {
	var (
		opts           runOptions
		stdout, stderr *bytes.Buffer
	)

	BeforeEach(func() {
		opts = runOptions{
			period:   10,
			count:    3,
			exitCode: 5,
			until:    -1,
		}
		stdout = &bytes.Buffer{}
		stderr = &bytes.Buffer{}
	})

	It("should run to the end and return the exit code", func() {
		code, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(5))
		Expect(stdout.String()).To(Equal(
			"tick 1 @ 10\ntick 2 @ 20\ntick 3 @ 30\n" +
				"exited with code 5 at 30\n"))
	})

	It("should stop at the requested time", func() {
		opts.until = 25

		code, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(0))
		Expect(stdout.String()).To(HaveSuffix("stopped at 25\n"))
	})

	It("should step in async mode", func() {
		opts.step = 15
		opts.async = true

		code, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).ToNot(HaveOccurred())
		Expect(code).To(Equal(5))
	})

	It("should print the events of selected components", func() {
		opts.vcd = "/soc/log.*"

		_, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(ContainSubstring(
			"10, countdown.TickRecord -> /soc/logger\n"))
		Expect(stdout.String()).ToNot(ContainSubstring("/soc/timer"))
	})

	It("should print per-component statistics", func() {
		opts.stats = true

		_, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).ToNot(HaveOccurred())
		Expect(stdout.String()).To(MatchRegexp(`timer\s+4 events`))
		Expect(stdout.String()).To(MatchRegexp(`logger\s+3 events`))
	})

	It("should log events and halts", func() {
		opts.logEvents = true

		_, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).ToNot(HaveOccurred())
		Expect(stderr.String()).To(ContainSubstring("[10] timer <- timing.TickEvent\n"))
		Expect(stderr.String()).To(ContainSubstring("[30] halt: finished\n"))
	})

	It("should print request spans", func() {
		opts.trace = true

		_, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).ToNot(HaveOccurred())
		Expect(stderr.String()).To(ContainSubstring("vpsim.run"))
	})

	It("should reject a non-positive period", func() {
		opts.period = 0

		_, err := runSimulation(context.Background(), opts, stdout, stderr)

		Expect(err).To(HaveOccurred())
	})

	It("should record halts that can be reported", func() {
		opts.step = 10
		opts.record = filepath.Join(GinkgoT().TempDir(), "rec")

		_, err := runSimulation(context.Background(), opts, stdout, stderr)
		Expect(err).ToNot(HaveOccurred())

		out := &bytes.Buffer{}
		cmd := &cobra.Command{}
		cmd.SetContext(context.Background())
		Expect(printReport(cmd, opts.record+".sqlite3", out)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("Command:"))
		Expect(out.String()).To(ContainSubstring("3 halts\n"))
		Expect(out.String()).To(ContainSubstring("  #3 at 30\n"))
	})
})

var _ = Describe("version", func() {
	It("should print the version", func() {
		out := &bytes.Buffer{}
		rootCmd.SetOut(out)
		rootCmd.SetArgs([]string{"version"})

		Expect(rootCmd.Execute()).To(Succeed())
		Expect(out.String()).To(Equal("vpsim dev\n"))
	})
})
