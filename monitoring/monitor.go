// Package monitoring serves the live state of a running analysis over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachescope/idgen"
	"github.com/sarchlab/cachescope/mem/cache"
	"github.com/sarchlab/cachescope/monitoring/web"
	"github.com/sarchlab/cachescope/stats"
)

// A CoreSnapshot is the content of one core's cache at a point in time.
type CoreSnapshot struct {
	Core      int
	NumSets   int
	NumWays   int
	Occupancy int
	Lines     []cache.Line
}

// A Snapshot is a consistent copy of the simulation state taken between two
// events.
type Snapshot struct {
	Events uint64
	Stats  *stats.Stats
	Cores  []CoreSnapshot
}

// Monitor can turn an analysis into a server that reports its progress and
// intermediate results.
type Monitor struct {
	log        logrus.FieldLogger
	portNumber int
	ids        idgen.Generator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	snapshotLock sync.Mutex
	snapshot     Snapshot

	profileDuration time.Duration
	server          *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor(log logrus.FieldLogger) *Monitor {
	return &Monitor{
		log:             log,
		ids:             idgen.New(),
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.log.WithField("port", portNumber).
			Warn("privileged port is not allowed for monitoring, " +
				"using a random port instead")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.ids.Generate().String(),
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

// Publish replaces the snapshot served by the monitor. The snapshot must not
// be modified afterwards.
func (m *Monitor) Publish(s Snapshot) {
	m.snapshotLock.Lock()
	defer m.snapshotLock.Unlock()

	m.snapshot = s
}

// Snapshot returns the most recently published snapshot.
func (m *Monitor) Snapshot() Snapshot {
	m.snapshotLock.Lock()
	defer m.snapshotLock.Unlock()

	return m.snapshot
}

func (m *Monitor) newRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/stats", m.currentStats)
	r.HandleFunc("/api/core/{id}", m.coreDetails)
	r.HandleFunc("/api/field/{path}", m.fieldValue)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("starting monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			m.log.WithError(err).Error("monitor stopped")
		}
	}()

	m.log.WithField("url", url).Info("monitoring analysis")

	return url, nil
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log.WithError(err).Warn("writing monitor response")
	}
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	views := make([]progressBarView, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		views = append(views, b.view())
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, views)
}

func (m *Monitor) currentStats(w http.ResponseWriter, _ *http.Request) {
	s := m.Snapshot()
	if s.Stats == nil {
		m.writeJSON(w, stats.New(0))
		return
	}

	m.writeJSON(w, s.Stats)
}

func (m *Monitor) coreDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid core id", http.StatusBadRequest)
		return
	}

	s := m.Snapshot()
	if id < 0 || id >= len(s.Cores) {
		http.Error(w, "core not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(s.Cores[id])
	serializer.SetMaxDepth(3)

	if err := serializer.Serialize(w); err != nil {
		m.log.WithError(err).Warn("serializing core")
	}
}

type fieldFormatError struct {
	path string
}

func (e fieldFormatError) Error() string {
	return "cannot walk field path " + e.path
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	s := m.Snapshot()

	elem, err := walkFields(&s, mux.Vars(r)["path"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	m.writeJSON(w, elem.Interface())
}

// walkFields follows a dot separated path of field names, slice indices and
// integer map keys.
func walkFields(root any, fields string) (reflect.Value, error) {
	elem := reflect.ValueOf(root)
	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			if elem.IsNil() {
				return elem, fieldFormatError{fields}
			}

			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			if !elem.IsValid() || !elem.CanInterface() {
				return elem, fieldFormatError{fields}
			}

			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil || index < 0 || index >= elem.Len() {
				return elem, fieldFormatError{fields}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		case reflect.Map:
			key, err := strconv.ParseUint(fieldNames[0], 0, 64)
			if err != nil || elem.Type().Key().Kind() != reflect.Uint64 {
				return elem, fieldFormatError{fields}
			}

			elem = elem.MapIndex(reflect.ValueOf(key))
			if !elem.IsValid() {
				return elem, fieldFormatError{fields}
			}

			fieldNames = fieldNames[1:]
		default:
			return elem, fieldFormatError{fields}
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}
