package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rushteam/tracksim/core"
)

var (
	weightsServer string
	weightsToken  string
)

// weights 命令通过 HTTP 读取或修改运行中服务的距离权重；权重只存在于服务进程内存中。
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show or update the distance weights of a running server",
	Long: `Without flags, prints the current weights. With any of --tempo, --energy,
--timbre or --brightness, sends a partial update; unspecified weights keep their value.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var u core.WeightsUpdate
		for name, dst := range map[string]**float64{
			"tempo":      &u.Tempo,
			"energy":     &u.Energy,
			"timbre":     &u.Timbre,
			"brightness": &u.Brightness,
		} {
			if !cmd.Flags().Changed(name) {
				continue
			}
			v, err := cmd.Flags().GetFloat64(name)
			if err != nil {
				return err
			}
			*dst = core.Float(v)
		}

		url := strings.TrimRight(weightsServer, "/") + "/api/v1/weights"
		var req *http.Request
		var err error
		if u.IsEmpty() {
			req, err = http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
		} else {
			body, merr := json.Marshal(u)
			if merr != nil {
				return merr
			}
			req, err = http.NewRequestWithContext(cmd.Context(), http.MethodPatch, url, bytes.NewReader(body))
			if err == nil {
				req.Header.Set("Content-Type", "application/json")
			}
		}
		if err != nil {
			return err
		}
		if weightsToken != "" {
			req.Header.Set("Authorization", "Bearer "+weightsToken)
		}

		resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(data))
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	f := weightsCmd.Flags()
	f.StringVar(&weightsServer, "server", "http://localhost:8080", "base URL of the tracksim server")
	f.StringVar(&weightsToken, "token", os.Getenv("TRACKSIM_SERVER__ADMIN_TOKEN"), "admin bearer token")
	f.Float64("tempo", 0, "tempo weight")
	f.Float64("energy", 0, "energy weight")
	f.Float64("timbre", 0, "timbre weight")
	f.Float64("brightness", 0, "brightness weight")
	rootCmd.AddCommand(weightsCmd)
}
