// Command sentryctl is an operator interface for sentryd, speaking its
// HTTP/v1 API over a cobra CLI.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var serverAddr string

func main() {
	root := &cobra.Command{
		Use:   "sentryctl",
		Short: "Operator interface for ghost-sentry",
	}

	root.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "sentryd address")

	root.AddCommand(tracksCmd(), tasksCmd(), assetsCmd(), missionsCmd(), detectCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func client() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func getJSON(path string, query url.Values, out any) error {
	u := serverAddr + "/v1" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := client().Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", u, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postJSON(path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client().Post(serverAddr+"/v1"+path, "application/json", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postForm(path string, query url.Values) error {
	u := serverAddr + "/v1" + path + "?" + query.Encode()
	resp, err := client().Post(u, "application/x-www-form-urlencoded", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

type trackView struct {
	EntityID   string  `json:"entityId"`
	Confidence float64 `json:"confidence"`
	Ontology   struct {
		PlatformType string `json:"platform_type"`
	} `json:"ontology"`
	Location struct {
		Position struct {
			LatitudeDegrees  float64 `json:"latitudeDegrees"`
			LongitudeDegrees float64 `json:"longitudeDegrees"`
		} `json:"position"`
	} `json:"location"`
}

func tracksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List current tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []struct {
				Data trackView `json:"data"`
			}
			if err := getJSON("/tracks", nil, &rows); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENTITY ID\tTYPE\tCONFIDENCE\tLAT\tLON")
			for _, r := range rows {
				t := r.Data
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%.5f\t%.5f\n",
					t.EntityID, t.Ontology.PlatformType, t.Confidence,
					t.Location.Position.LatitudeDegrees, t.Location.Position.LongitudeDegrees)
			}
			return w.Flush()
		},
	}
	return cmd
}

type taskView struct {
	ID         string `json:"id"`
	EntityID   string `json:"entity_id"`
	Type       string `json:"type"`
	State      string `json:"state"`
	AssignedTo string `json:"assigned_to"`
	CreatedAt  string `json:"created_at"`
}

func tasksCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and manage tasks",
	}
	root.AddCommand(tasksListCmd(), tasksAckCmd())
	return root
}

func tasksListCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if state != "" {
				q.Set("state", state)
			}
			var tasks []taskView
			if err := getJSON("/tasks", q, &tasks); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENTITY\tTYPE\tSTATE\tASSIGNED TO\tCREATED")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.EntityID, t.Type, t.State, t.AssignedTo, t.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&state, "state", "s", "", "filter by state (pending, assigned, completed)")
	return cmd
}

func tasksAckCmd() *cobra.Command {
	var operatorID string
	cmd := &cobra.Command{
		Use:   "ack <task-id>",
		Short: "Acknowledge a pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if operatorID != "" {
				q.Set("operator_id", operatorID)
			}
			if err := postForm(fmt.Sprintf("/tasks/%s/ack", args[0]), q); err != nil {
				return err
			}
			fmt.Printf("Acknowledged: %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&operatorID, "operator", "", "operator acknowledging the task")
	return cmd
}

type assetView struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	Domain        string  `json:"domain"`
	Battery       float64 `json:"battery"`
	Signal        float64 `json:"signal"`
	CurrentTaskID string  `json:"current_task_id"`
}

func assetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List tasking assets and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var assets []assetView
			if err := getJSON("/assets", nil, &assets); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tDOMAIN\tSTATUS\tBATTERY\tSIGNAL\tTASK")
			for _, a := range assets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\t%.0f%%\t%s\n",
					a.ID, a.Type, a.Domain, a.Status, a.Battery*100, a.Signal*100, a.CurrentTaskID)
			}
			return w.Flush()
		},
	}
	return cmd
}

type missionView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func missionsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "missions",
		Short: "Inspect and create missions",
	}
	root.AddCommand(missionsListCmd(), missionsCreateCmd())
	return root
}

func missionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var missions []missionView
			if err := getJSON("/missions", nil, &missions); err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED")
			for _, m := range missions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Name, m.CreatedAt)
			}
			return w.Flush()
		},
	}
}

func missionsCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty-geometry mission placeholder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			body := map[string]any{"name": name, "geometries": []any{}}
			var created struct {
				MissionID string `json:"mission_id"`
			}
			if err := postJSON("/missions", body, &created); err != nil {
				return err
			}
			fmt.Printf("Created mission: %s (%s)\n", name, created.MissionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "mission name")
	return cmd
}

func detectCmd() *cobra.Command {
	var label string
	var confidence float64
	var lat, lon float64
	var sar bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Inject a single mock detection for testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			det := map[string]any{"label": label, "confidence": confidence, "lat": lat, "lon": lon}
			body := map[string]any{"optical": []any{}, "sar": []any{}}
			key := "optical"
			if sar {
				key = "sar"
			}
			body[key] = []any{det}

			var stats map[string]int
			if err := postJSON("/detections", body, &stats); err != nil {
				return err
			}
			fmt.Printf("tracks=%d tasks=%d\n", stats["tracks"], stats["tasks"])
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "airplane", "detection label")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.9, "detection confidence")
	cmd.Flags().Float64Var(&lat, "lat", 33.94, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", -118.41, "longitude")
	cmd.Flags().BoolVar(&sar, "sar", false, "inject as a SAR detection instead of optical")
	return cmd
}
