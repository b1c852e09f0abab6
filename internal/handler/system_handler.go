package handler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/veritest/veritest-backend/internal/config"
	"github.com/veritest/veritest-backend/internal/middleware"
	"github.com/veritest/veritest-backend/internal/response"
)

const metricsInterval = 7 * time.Second

// SystemHandler streams host and runtime health to the admin panel over SSE.
// The queue depths are the interesting part during an exam: a growing
// answers queue means the persistence workers are falling behind.
type SystemHandler struct {
	rdb     *redis.Client
	started time.Time
	log     zerolog.Logger

	// previous /proc/stat sample for CPU utilization deltas
	prevCPU cpuSample
}

func NewSystemHandler(rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	h := &SystemHandler{
		rdb:     rdb,
		started: time.Now(),
		log:     log.With().Str("component", "system_handler").Logger(),
	}
	// Seed the first sample so the first tick reports a real delta.
	h.prevCPU, _ = sampleCPU()
	return h
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	CPUPercent     float64 `json:"cpu_percent"`
	MemUsedBytes   uint64  `json:"mem_used_bytes"`
	MemTotalBytes  uint64  `json:"mem_total_bytes"`
	MemPercent     float64 `json:"mem_percent"`
	DiskUsedBytes  uint64  `json:"disk_used_bytes"`
	DiskTotalBytes uint64  `json:"disk_total_bytes"`
	DiskPercent    float64 `json:"disk_percent"`
	LoadAvg1       float64 `json:"load_avg_1"`
	LoadAvg5       float64 `json:"load_avg_5"`
	LoadAvg15      float64 `json:"load_avg_15"`

	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc"`
	HeapSys     uint64 `json:"heap_sys"`
	NumGC       uint32 `json:"num_gc"`
	AppRSSBytes uint64 `json:"app_rss_bytes"`
	GoVersion   string `json:"go_version"`
	NumCPU      int    `json:"num_cpu"`

	QueueAnswers    int64 `json:"queue_answers"`
	QueueViolations int64 `json:"queue_violations"`
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	h.log.Info().Int("user_id", claims.UserID).Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	h.push(c)
	for {
		select {
		case <-c.Request.Context().Done():
			h.log.Info().Int("user_id", claims.UserID).Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.push(c)
		}
	}
}

func (h *SystemHandler) push(c *gin.Context) {
	c.SSEvent("metrics", h.collect(c.Request.Context()))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp: time.Now().Unix(),
		Uptime:    formatUptime(time.Since(h.started)),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}

	if cur, err := sampleCPU(); err == nil && cur.total > h.prevCPU.total {
		idleDelta := float64(cur.idle - h.prevCPU.idle)
		totalDelta := float64(cur.total - h.prevCPU.total)
		m.CPUPercent = (1 - idleDelta/totalDelta) * 100
		h.prevCPU = cur
	}

	if total, avail, err := readMemInfo(); err == nil && total > 0 {
		m.MemTotalBytes = total
		m.MemUsedBytes = total - avail
		m.MemPercent = float64(m.MemUsedBytes) / float64(total) * 100
	}

	if total, free, err := statDisk("/"); err == nil && total > 0 {
		m.DiskTotalBytes = total
		m.DiskUsedBytes = total - free
		m.DiskPercent = float64(m.DiskUsedBytes) / float64(total) * 100
	}

	m.LoadAvg1, m.LoadAvg5, m.LoadAvg15 = readLoadAvg()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.NumGC = ms.NumGC
	m.AppRSSBytes = readSelfRSS()

	pipe := h.rdb.Pipeline()
	answers := pipe.LLen(ctx, config.WorkerKey.PersistAnswersQueue)
	violations := pipe.LLen(ctx, config.WorkerKey.PersistViolationsQueue)
	if _, err := pipe.Exec(ctx); err == nil {
		m.QueueAnswers = answers.Val()
		m.QueueViolations = violations.Val()
	}

	return m
}

// ── /proc sampling ──────────────────────────────────────────────────────

type cpuSample struct {
	idle  uint64
	total uint64
}

// sampleCPU reads the aggregate line of /proc/stat. Field 4 is idle time.
func sampleCPU() (cpuSample, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return cpuSample{}, err
	}

	fields := strings.Fields(strings.SplitN(string(data), "\n", 2)[0])
	if len(fields) < 5 || fields[0] != "cpu" {
		return cpuSample{}, fmt.Errorf("unexpected /proc/stat format")
	}

	var s cpuSample
	for i, f := range fields[1:] {
		v, _ := strconv.ParseUint(f, 10, 64)
		s.total += v
		if i == 3 {
			s.idle = v
		}
	}
	return s, nil
}

func readMemInfo() (total, available uint64, err error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = kbFieldToBytes(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			available = kbFieldToBytes(line)
		}
		if total > 0 && available > 0 {
			break
		}
	}
	return total, available, nil
}

// kbFieldToBytes parses lines like "MemTotal:  16384000 kB".
func kbFieldToBytes(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseUint(fields[1], 10, 64)
	return v * 1024
}

func statDisk(path string) (total, free uint64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	return st.Blocks * uint64(st.Bsize), st.Bavail * uint64(st.Bsize), nil
}

func readLoadAvg() (l1, l5, l15 float64) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0
	}
	l1, _ = strconv.ParseFloat(fields[0], 64)
	l5, _ = strconv.ParseFloat(fields[1], 64)
	l15, _ = strconv.ParseFloat(fields[2], 64)
	return l1, l5, l15
}

func readSelfRSS() uint64 {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "VmRSS:") {
			return kbFieldToBytes(line)
		}
	}
	return 0
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	default:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
}
