package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/mem/trace"
	"github.com/sarchlab/mmusim/mem/vm/mmu"
	"github.com/sarchlab/mmusim/monitoring"
	"github.com/sarchlab/mmusim/sim/hooking"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [trace-file]",
	Short: "Translate every address of a trace.",
	Long: "`run trace.txt` translates the addresses listed in trace.txt, one " +
		"per line, decimal or 0x-prefixed hex. Lines starting with # are " +
		"ignored. Without a file, addresses are read from standard input. " +
		"`run --reference` replays the built-in reference sequence.",
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(runCmd)
	registerConfigFlags(runCmd.Flags())
	runCmd.Flags().Bool("reference", false,
		"Replay the built-in reference address sequence")
}

func runReplay(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	err := loadEnvFile(envFile)
	if err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := configFromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	addrs, err := readAddresses(cmd, args)
	if err != nil {
		return err
	}

	m, err := cfg.builder().Build("MMU")
	if err != nil {
		return err
	}
	defer m.Teardown()

	warnAboutLayout(m)

	counter := hooking.NewPosCountTracer()
	m.AcceptHook(counter)

	if cfg.Verbose {
		m.AcceptHook(trace.NewLogTracer(log.New(os.Stderr, "", 0)))
	}

	if cfg.Record != "" {
		recorder, err := datarecording.Open(cfg.Record)
		if err != nil {
			return err
		}
		defer recorder.Close()

		m.AcceptHook(trace.NewDBTracer(recorder))
	}

	r := &replayer{
		mmu:      m,
		out:      cmd.OutOrStdout(),
		failFast: cfg.FailFast,
	}

	var monitor *monitoring.Monitor
	if cfg.Monitor {
		monitor = startMonitor(cfg, m)
		r.bar = monitor.CreateProgressBar("Replay", uint64(len(addrs)))
		defer monitor.CompleteProgressBar(r.bar)
	}

	numFailed, err := r.replay(addrs)

	printStatus(cmd.OutOrStdout(), m.Status())
	fmt.Fprintf(cmd.OutOrStdout(),
		"Translations: %d tlb hits, %d page table hits, %d new frames, "+
			"%d out of frames\n",
		counter.GetCount(mmu.HookPosTLBHit),
		counter.GetCount(mmu.HookPosPageTableHit),
		counter.GetCount(mmu.HookPosFrameAllocated),
		numFailed)

	if monitor != nil && cfg.MonitorWait {
		waitForInterrupt(cmd.Context(), monitor.URL())
	}

	return err
}

// waitForInterrupt blocks until ctx is done or the process receives SIGINT or
// SIGTERM.
func waitForInterrupt(ctx context.Context, url string) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr,
		"Replay finished. Still serving %s, press Ctrl-C to exit.\n", url)

	<-ctx.Done()
}

func readAddresses(cmd *cobra.Command, args []string) ([]uint64, error) {
	useReference, _ := cmd.Flags().GetBool("reference")
	if useReference {
		if len(args) > 0 {
			return nil, fmt.Errorf("--reference does not take a trace file")
		}

		return referenceTrace, nil
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()

		in = f
	}

	return parseTrace(in)
}

func warnAboutLayout(m *mmu.Comp) {
	layout := m.Layout()

	if layout.HasGap() {
		fmt.Fprintf(os.Stderr,
			"Warning: %d vpn bits and %d offset bits leave virtual address "+
				"bits unused.\n", layout.VPNBits, layout.OffsetBits())
	}

	if layout.HasOverlap() {
		fmt.Fprintf(os.Stderr,
			"Warning: %d vpn bits and %d offset bits overlap.\n",
			layout.VPNBits, layout.OffsetBits())
	}
}

func startMonitor(cfg config, m *mmu.Comp) *monitoring.Monitor {
	monitor := monitoring.NewMonitor().WithPortNumber(cfg.MonitorPort)
	monitor.RegisterComponent(m)
	monitor.StartServer()

	if cfg.OpenBrowser {
		err := monitor.OpenBrowser(m.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	return monitor
}
