// Package monitoring turns a simulation into a server that can be watched and
// controlled over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/vpsim/launcher"
	"github.com/sarchlab/vpsim/monitoring/web"
	"github.com/sarchlab/vpsim/sim/id"
	"github.com/sarchlab/vpsim/sim/simulation"
	"github.com/sarchlab/vpsim/sim/timing"
)

// A Controller is what the monitor drives. *launcher.Launcher satisfies it.
type Controller interface {
	RunAsync() error
	Stop() (timing.VTime, error)
	Step(duration timing.VTime) (timing.VTime, error)
	StepUntil(timestamp timing.VTime) (timing.VTime, error)
	CurrentTime() timing.VTime
	State() launcher.State
	Tree() *simulation.Tree
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	ctrl       Controller
	metrics    *Metrics
	portNumber int
	logger     *log.Logger
	idGen      id.IDGenerator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor(ctrl Controller) *Monitor {
	return &Monitor{
		ctrl:   ctrl,
		logger: log.New(os.Stderr, "vpsim monitor: ", log.LstdFlags),
		idGen:  id.NewIDGenerator(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithMetrics exposes the collectors of metrics on /metrics.
func (m *Monitor) WithMetrics(metrics *Metrics) *Monitor {
	m.metrics = metrics
	return m
}

// WithLogger sets the logger that reports background failures.
func (m *Monitor) WithLogger(logger *log.Logger) *Monitor {
	m.logger = logger
	return m
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the monitoring API and the web page.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/run", m.run).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", m.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/step/{duration}", m.step).Methods(http.MethodPost)
	r.HandleFunc("/api/step_until/{time}", m.stepUntil).
		Methods(http.MethodPost)
	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/state", m.state).Methods(http.MethodGet)
	r.HandleFunc("/api/list_components", m.listComponents).
		Methods(http.MethodGet)
	r.HandleFunc("/api/component/{path:.+}", m.listComponentDetails).
		Methods(http.MethodGet)
	r.HandleFunc("/api/field/{json}", m.listFieldValue).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	if m.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(
			m.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", errors.Wrap(err, "failed to start monitoring server")
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Print(err)
		}
	}()

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type timeRsp struct {
	Now timing.VTime `json:"now"`
}

type stateRsp struct {
	State string       `json:"state"`
	Now   timing.VTime `json:"now"`
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	if err := m.ctrl.RunAsync(); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	now, err := m.ctrl.Stop()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, timeRsp{Now: now})
}

func (m *Monitor) step(w http.ResponseWriter, r *http.Request) {
	duration, err := parseTime(mux.Vars(r)["duration"])
	if err != nil {
		writeError(w, err)
		return
	}

	now, err := m.ctrl.Step(duration)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, timeRsp{Now: now})
}

func (m *Monitor) stepUntil(w http.ResponseWriter, r *http.Request) {
	target, err := parseTime(mux.Vars(r)["time"])
	if err != nil {
		writeError(w, err)
		return
	}

	now, err := m.ctrl.StepUntil(target)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, timeRsp{Now: now})
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, timeRsp{Now: m.ctrl.CurrentTime()})
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, stateRsp{
		State: m.ctrl.State().String(),
		Now:   m.ctrl.CurrentTime(),
	})
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	paths := []string{}
	if tree := m.ctrl.Tree(); tree != nil {
		paths = tree.Paths()
	}

	writeJSON(w, paths)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["path"])
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	path string,
) simulation.Component {
	tree := m.ctrl.Tree()
	if tree == nil {
		http.Error(w, "Component not found", http.StatusNotFound)
		return nil
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	component, err := tree.Get(path)
	if err != nil {
		http.Error(w, "Component not found", http.StatusNotFound)
		return nil
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func parseTime(s string) (timing.VTime, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(launcher.ErrInvalidDuration, "%q", s)
	}

	return timing.VTime(v), nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, launcher.ErrEngineBusy),
		errors.Is(err, launcher.ErrFinished):
		status = http.StatusConflict
	case errors.Is(err, launcher.ErrInvalidDuration):
		status = http.StatusBadRequest
	case errors.Is(err, launcher.ErrEngineClosed),
		errors.Is(err, launcher.ErrNotOpen),
		errors.Is(err, launcher.ErrNotStarted):
		status = http.StatusServiceUnavailable
	}

	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
