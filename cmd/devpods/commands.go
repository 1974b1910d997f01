package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"

	"devpods/pkg/orchestrator"
	"devpods/pkg/pod"
	"devpods/pkg/ui"

	"github.com/spf13/cobra"
)

// podAction is one lifecycle verb applied to a single pod
type podAction func(ctx context.Context, k pod.Kind) error

func targetList() string {
	keys := make([]string, 0, len(pod.All()))
	for _, k := range pod.All() {
		keys = append(keys, k.Key())
	}
	return strings.Join(keys, ", ")
}

// resolveTargets maps the optional target argument to pods. It runs before
// any runtime call so an unknown alias never mutates anything.
func resolveTargets(args []string) ([]pod.Kind, error) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	kinds, err := pod.Resolve(target)
	if err != nil {
		return nil, fmt.Errorf("%w (geçerli hedefler: all, %s)", err, targetList())
	}
	return kinds, nil
}

// runEach applies action to every pod in order and stops at the first failure
func runEach(ctx context.Context, kinds []pod.Kind, action podAction) error {
	for _, k := range kinds {
		if err := action(ctx, k); err != nil {
			return fmt.Errorf("%s: %w", k.Name(), err)
		}
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// lifecycleCommand builds up, down and reset, which share argument handling and wiring
func lifecycleCommand(use, short, long string, pick func(*orchestrator.Orchestrator) podAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [target]",
		Short: short,
		Long:  long,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := resolveTargets(args)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := newApp(ctx, use == "up")
			if err != nil {
				return err
			}
			defer a.Close()

			return runEach(ctx, kinds, pick(a.orch))
		},
	}
}

var upCmd = lifecycleCommand("up", "🚀 Pod'ları başlat",
	`Hedef pod'ları başlatır. Eksik image'lar önce çekilir; biri bile çekilemezse
hiçbir container oluşturulmaz. Çalışan pod'lar ve mevcut container'lar atlanır.

Örnek kullanım:
  devpods up
  devpods up postgres
  devpods up cache`,
	func(o *orchestrator.Orchestrator) podAction { return o.Up })

var downCmd = lifecycleCommand("down", "🛑 Pod'ları durdur ve kaldır (veri korunur)",
	`Hedef pod'ları durdurup kaldırır. Veri dizinlerine dokunulmaz.
Zaten kapalı bir pod için hiçbir şey yapılmaz.

Örnek kullanım:
  devpods down
  devpods down mongo`,
	func(o *orchestrator.Orchestrator) podAction { return o.Down })

var resetCmd = lifecycleCommand("reset", "🧹 Pod'ları kaldır ve verilerini sil",
	`Hedef pod'ları kaldırır ve veri dizinlerini siler. Bir sonraki "up"
boş bir veri dizini ile başlar.

Örnek kullanım:
  devpods reset redis
  devpods reset all`,
	func(o *orchestrator.Orchestrator) podAction { return o.Reset })

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"ps"},
	Short:   "📋 Pod durumlarını göster",
	Long: `Her pod için durum (running, degraded, stopped) ve uç noktaları listeler.
Hiçbir şeyi değiştirmez.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		statuses, err := a.orch.Status(ctx)
		if err != nil {
			return err
		}
		return printStatus(cmd.OutOrStdout(), statuses, a.formatter)
	},
}

// printStatus renders the status table
func printStatus(out io.Writer, statuses []orchestrator.PodStatus, f *ui.MarkerFormatter) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POD\tROL\tUÇ NOKTALAR\tDURUM")
	fmt.Fprintln(w, "---\t---\t-----------\t-----")
	for _, st := range statuses {
		// styled text stays in the last column; tabwriter counts escape bytes as width
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Key, st.Role, st.Endpoints, f.StateStyle(string(st.State)))
	}
	return w.Flush()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "ℹ️  Sürüm bilgisini göster",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "devpods %s\n", version)
		fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Pod sayısı: %d\n", len(pod.All()))
	},
}
