package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"devpods/pkg/registry"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

const devpodsBanner = `
     _                             _
  __| | _____   ___ __   ___   __| |___
 / _' |/ _ \ \ / / '_ \ / _ \ / _' / __|
| (_| |  __/\ V /| |_) | (_) | (_| \__ \
 \__,_|\___| \_/ | .__/ \___/ \__,_|___/
                 |_|
`

var (
	configPath string
	dataDir    string
	rootCmd    = &cobra.Command{
		Use:   "devpods",
		Short: "🐳 Yerel geliştirme servislerini pod olarak yönet",
		Long: devpodsBanner + `
devpods; PostgreSQL, MongoDB, Redis, Mailpit, Seq, RabbitMQ ve NATS servislerini
izole pod'lar halinde başlatır, durdurur ve sıfırlar. Her komut tekrar
çalıştırılabilir; mevcut durum her seferinde runtime'dan okunur.

Kullanım örnekleri:
  devpods up                 # Tüm pod'ları başlat
  devpods up pg              # Sadece PostgreSQL
  devpods down mongo         # Mongo pod'unu kapat, veriyi koru
  devpods reset redis        # Redis pod'unu kapat ve verisini sil
  devpods status             # Durum tablosu

Hedefler: all, ` + targetList() + `

Daha fazla bilgi için: devpods [komut] --help`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config dosyası (varsayılan: ./devpods.yaml, $HOME/.devpods/devpods.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "veri dizini (varsayılan: ~/.devpods)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints the diagnosis and, for pull failures, the remediation options
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "❌ Hata: %v\n", err)

	var pullErr *registry.PullError
	if errors.As(err, &pullErr) {
		fmt.Fprintln(w)
		fmt.Fprintln(w, pullErr.Remediation())
	}
}
