package commands

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/choregate/internal/foundation/errors"
)

// household fakes both external services for one test.
type household struct {
	mu          sync.Mutex
	rules       map[string]string // name -> Enable|Disable
	tasks       map[string][]map[string]any
	todoistDown bool
	password    string

	dir string
}

type sophosRequest struct {
	Login struct {
		Password string `xml:"Password"`
	} `xml:"Login"`
	Get *struct {
		Name string `xml:"FirewallRule>Filter>key"`
	} `xml:"Get"`
	Set *struct {
		Name   string `xml:"FirewallRule>Name"`
		Status string `xml:"FirewallRule>Status"`
	} `xml:"Set"`
}

func (h *household) serveFirewall(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var req sophosRequest
	if err := xml.Unmarshal([]byte(r.FormValue("reqxml")), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var b strings.Builder
	b.WriteString("<Response>")
	defer func() { _, _ = w.Write([]byte(b.String())) }()

	if req.Login.Password != h.password {
		b.WriteString("<Login><status>Authentication Failure</status></Login></Response>")
		return
	}
	b.WriteString("<Login><status>Authentication Successful</status></Login>")
	switch {
	case req.Get != nil:
		if status, ok := h.rules[req.Get.Name]; ok {
			fmt.Fprintf(&b, "<FirewallRule><Name>%s</Name><Status>%s</Status></FirewallRule>", req.Get.Name, status)
		}
	case req.Set != nil:
		h.rules[req.Set.Name] = req.Set.Status
		b.WriteString(`<FirewallRule><Status code="200">Configuration applied successfully.</Status></FirewallRule>`)
	}
	b.WriteString("</Response>")
}

func (h *household) serveTodoist(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.todoistDown {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	var results any
	switch r.URL.Path {
	case "/tasks":
		tasks := h.tasks[r.URL.Query().Get("section_id")]
		if tasks == nil {
			tasks = []map[string]any{}
		}
		results = tasks
	case "/projects":
		results = []map[string]any{{"id": "p-1", "name": "Chores"}}
	case "/sections":
		results = []map[string]any{
			{"id": "s-daniel", "project_id": "p-1", "name": "Daniel"},
			{"id": "s-sophie", "project_id": "p-1", "name": "Sophie"},
		}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"results": results, "next_cursor": nil})
}

func (h *household) rule(name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rules[name]
}

const childrenYAML = `children:
  - name: Daniel
    section_id: s-daniel
    rule_name: Block Daniel
  - name: Sophie
    section_id: s-sophie
    rule_name: Block Sophie
scheduled_disables:
  - rule: Allow Sophie Late
    at: "14:30"
`

// newHousehold starts both fakes and points the environment at them.
func newHousehold(t *testing.T) *household {
	t.Helper()
	h := &household{
		rules: map[string]string{
			"Block Daniel":      "Disable",
			"Block Sophie":      "Enable",
			"Allow Sophie Late": "Enable",
		},
		tasks: map[string][]map[string]any{
			"s-daniel": {{"id": "1", "content": "Dishes", "due": map[string]any{"date": "2024-05-01"}}},
		},
		password: "pw",
		dir:      t.TempDir(),
	}

	fw := httptest.NewTLSServer(http.HandlerFunc(h.serveFirewall))
	t.Cleanup(fw.Close)
	todo := httptest.NewServer(http.HandlerFunc(h.serveTodoist))
	t.Cleanup(todo.Close)

	u, err := url.Parse(fw.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	childrenPath := filepath.Join(h.dir, "children.yaml")
	require.NoError(t, os.WriteFile(childrenPath, []byte(childrenYAML), 0o600))

	for k, v := range map[string]string{
		"TODOIST_API_KEY":        "tok",
		"TODOIST_API_URL":        todo.URL,
		"TODOIST_RETRY_ATTEMPTS": "1",
		"SOPHOS_HOST":            host,
		"SOPHOS_PORT":            port,
		"SOPHOS_API_USER":        "api",
		"SOPHOS_API_PASSWORD":    "pw",
		"TIMEZONE":               "Europe/London",
		"CUTOFF_HOUR":            "14",
		"CHILDREN_FILE":          childrenPath,
		"STATE_FILE_PATH":        filepath.Join(h.dir, "completion.json"),
		"ACTION_STATE_FILE_PATH": filepath.Join(h.dir, "actions.json"),
		"HISTORY_DB_PATH":        filepath.Join(h.dir, "history.db"),
		"METRICS_TEXTFILE_PATH":  filepath.Join(h.dir, "choregate.prom"),
		"NATS_URL":               "",
		"LOG_LEVEL":              "",
		"LOG_FORMAT":             "",
	} {
		t.Setenv(k, v)
	}
	return h
}

func afternoon(t *testing.T) clockwork.Clock {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 15, 0, 0, 0, loc))
}

func execute(t *testing.T, clk clockwork.Clock, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cli := &CLI{}
	g := &Global{Out: &out, LogOut: &logs, Clock: clk}
	parser, err := NewParser(cli, g,
		kong.Writers(&out, &logs),
		kong.Exit(func(code int) { t.Fatalf("unexpected exit %d: %s", code, logs.String()) }))
	require.NoError(t, err)

	ctx, err := parser.Parse(append([]string{"--no-dotenv"}, args...))
	if err != nil {
		return out.String(), err
	}
	err = ctx.Run(g, cli)
	return out.String(), err
}

func TestRun_AppliesDecisionsAndPersists(t *testing.T) {
	h := newHousehold(t)

	out, err := execute(t, afternoon(t), "run", "--summary")
	require.NoError(t, err)

	require.Equal(t, "Enable", h.rule("Block Daniel"), "incomplete tasks block")
	require.Equal(t, "Disable", h.rule("Block Sophie"), "complete tasks allow")
	require.Equal(t, "Disable", h.rule("Allow Sophie Late"), "scheduled disable fired")

	require.Contains(t, out, "Daniel\tenabled\tincomplete_tasks\tapplied")
	require.Contains(t, out, "Sophie\tdisabled\ttasks_complete\tapplied")
	require.Contains(t, out, "disable_allow_sophie_late_at_time\tfired")

	completion, err := os.ReadFile(filepath.Join(h.dir, "completion.json"))
	require.NoError(t, err)
	require.Contains(t, string(completion), `"sophie": "2024-05-01"`)
	require.NotContains(t, string(completion), "daniel")

	actions, err := os.ReadFile(filepath.Join(h.dir, "actions.json"))
	require.NoError(t, err)
	require.Contains(t, string(actions), `"disable_allow_sophie_late_at_time": "2024-05-01"`)

	prom, err := os.ReadFile(filepath.Join(h.dir, "choregate.prom"))
	require.NoError(t, err)
	require.Contains(t, string(prom), "choregate_decisions_total")
}

func TestRun_IsDefaultCommand(t *testing.T) {
	h := newHousehold(t)

	_, err := execute(t, afternoon(t))
	require.NoError(t, err)
	require.Equal(t, "Enable", h.rule("Block Daniel"))
}

func TestRun_TaskServiceDownFailsSafeAndSucceeds(t *testing.T) {
	h := newHousehold(t)
	h.todoistDown = true

	_, err := execute(t, afternoon(t), "run")
	require.NoError(t, err, "external failures never fail the run")
	require.Equal(t, "Enable", h.rule("Block Daniel"))
	require.Equal(t, "Enable", h.rule("Block Sophie"))
}

func TestRun_ConfigErrorExitCode(t *testing.T) {
	newHousehold(t)
	t.Setenv("TODOIST_API_KEY", "")
	t.Setenv("CUTOFF_HOUR", "25")

	_, err := execute(t, afternoon(t), "run")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
	require.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestInvalidLogFormatFlag(t *testing.T) {
	newHousehold(t)

	_, err := execute(t, afternoon(t), "--log-format", "xml", "version")
	require.Error(t, err)
	require.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestCheck(t *testing.T) {
	t.Run("all reachable", func(t *testing.T) {
		h := newHousehold(t)

		out, err := execute(t, afternoon(t), "check")
		require.NoError(t, err)
		require.Contains(t, out, "OK    rule Block Daniel: disabled (internet allowed)")
		require.Contains(t, out, "OK    rule Allow Sophie Late: enabled (internet blocked)")
		require.Contains(t, out, "OK    tasks for Daniel (section s-daniel): has incomplete tasks due today")
		require.Contains(t, out, "All checks passed")
		require.Equal(t, "Disable", h.rule("Block Daniel"), "check never changes rules")
	})

	t.Run("bad firewall credentials", func(t *testing.T) {
		newHousehold(t)
		t.Setenv("SOPHOS_API_PASSWORD", "wrong")

		out, err := execute(t, afternoon(t), "check")
		require.Error(t, err)
		require.Contains(t, out, "FAIL  firewall login")
		require.Equal(t, 1, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	})
}

func TestSections(t *testing.T) {
	newHousehold(t)

	out, err := execute(t, afternoon(t), "sections")
	require.NoError(t, err)
	require.Contains(t, out, "PROJECT")
	require.Contains(t, out, "s-daniel")
	require.Contains(t, out, "s-sophie")
}

func TestStatus(t *testing.T) {
	newHousehold(t)
	clk := afternoon(t)

	_, err := execute(t, clk, "run")
	require.NoError(t, err)

	out, err := execute(t, clk, "status", "--limit", "10")
	require.NoError(t, err)
	require.Contains(t, out, "Today: 2024-05-01")
	require.Contains(t, out, "sophie")
	require.Contains(t, out, "disable_allow_sophie_late_at_time")
	require.Contains(t, out, "incomplete_tasks")
	require.Contains(t, out, "Block Daniel")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "choregate "))
}

func TestDaemonOptions(t *testing.T) {
	newHousehold(t)
	t.Setenv("RUN_INTERVAL", "10m")
	t.Setenv("METRICS_LISTEN", "127.0.0.1:0")

	cli := &CLI{NoDotEnv: true}
	g := &Global{LogOut: &bytes.Buffer{}}
	cfg, err := cli.loadConfig(g)
	require.NoError(t, err)

	_, prom := newRecorder(cfg)
	require.NotNil(t, prom)

	opts := (&DaemonCmd{}).options(cfg, g.Logger, prom)
	require.Equal(t, 10*time.Minute, opts.Interval)
	require.Equal(t, cfg.ChildrenFile, opts.WatchPath)
	require.Equal(t, "127.0.0.1:0", opts.MetricsListen)
	require.NotNil(t, opts.Metrics)
	require.NotNil(t, opts.AfterRun)

	opts = (&DaemonCmd{Interval: time.Minute, NoWatch: true}).options(cfg, g.Logger, nil)
	require.Equal(t, time.Minute, opts.Interval)
	require.Empty(t, opts.WatchPath)
	require.Nil(t, opts.Metrics)
}
