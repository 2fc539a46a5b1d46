package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"ryzenadjd/internal/core"
)

// ErrUnsupported возвращается, если модель CPU не входит в список устройств.
var ErrUnsupported = errors.New("device is not supported")

// CPUDetector возвращает модель процессора.
type CPUDetector func(ctx context.Context) (string, error)

// Module определяет устройство и отдает сведения об узле.
type Module struct {
	// Extra: модели, добавленные оператором в конфиге.
	Extra []string
	// Detect по умолчанию читает модель через gopsutil.
	Detect CPUDetector
	// SkipCheck отключает сверку со списком устройств в Preflight.
	SkipCheck bool

	mu    sync.Mutex
	model string
}

// CPUReport отдается командами cpu и check.
type CPUReport struct {
	Model     string `json:"cpu_model"`
	Supported bool   `json:"supported"`
}

func (m *Module) Name() string { return "host" }

func (m *Module) Init(ctx context.Context) error { //nolint:revive // инициализация тривиальна
	if m.Detect == nil {
		m.Detect = DetectCPUModel
	}
	return nil
}

func (m *Module) Execute(ctx context.Context, cmd string, args []string) (core.Response, error) {
	switch cmd {
	case "status":
		return m.status(ctx)
	case "cpu":
		return m.cpu(ctx)
	case "check":
		model, err := m.CheckSupported(ctx)
		report := CPUReport{Model: model, Supported: err == nil}
		if err != nil {
			code := "cpu_info_failed"
			if errors.Is(err, ErrUnsupported) {
				code = "unsupported_device"
			}
			return core.Response{Status: "error", Data: report, ErrorCode: code}, err
		}
		return core.Response{Status: "ok", Data: report}, nil
	default:
		return core.Response{Status: "error", ErrorCode: "unknown_command"}, fmt.Errorf("command %s not supported", cmd)
	}
}

// Preflight проверяет устройство перед запуском демона и запоминает модель CPU.
// При SkipCheck модель не определяется.
func (m *Module) Preflight(ctx context.Context) error {
	if m.SkipCheck {
		return nil
	}
	_, err := m.CheckSupported(ctx)
	return err
}

// Model возвращает модель CPU, найденную последней проверкой.
func (m *Module) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// CheckSupported определяет модель CPU и сверяет ее со списком устройств.
func (m *Module) CheckSupported(ctx context.Context) (string, error) {
	model, err := m.detect(ctx)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.model = model
	m.mu.Unlock()
	if !IsSupported(model, m.Extra) {
		return model, fmt.Errorf("%q: %w", model, ErrUnsupported)
	}
	return model, nil
}

func (m *Module) detect(ctx context.Context) (string, error) {
	d := m.Detect
	if d == nil {
		d = DetectCPUModel
	}
	model, err := d(ctx)
	if err != nil {
		return "", fmt.Errorf("detect cpu: %w", err)
	}
	return model, nil
}

func (m *Module) cpu(ctx context.Context) (core.Response, error) {
	model, err := m.detect(ctx)
	if err != nil {
		return core.Response{Status: "error", ErrorCode: "cpu_info_failed"}, err
	}
	return core.Response{Status: "ok", Data: CPUReport{Model: model, Supported: IsSupported(model, m.Extra)}}, nil
}

func (m *Module) status(ctx context.Context) (core.Response, error) {
	model, err := m.detect(ctx)
	if err != nil {
		return core.Response{Status: "error", ErrorCode: "cpu_info_failed"}, err
	}
	hInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return core.Response{Status: "error", ErrorCode: "host_info_failed"}, fmt.Errorf("host info: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return core.Response{Status: "error", ErrorCode: "mem_info_failed"}, fmt.Errorf("memory info: %w", err)
	}
	ld, err := load.AvgWithContext(ctx)
	if err != nil {
		return core.Response{Status: "error", ErrorCode: "load_info_failed"}, fmt.Errorf("load info: %w", err)
	}
	resp := map[string]interface{}{
		"hostname":     hInfo.Hostname,
		"platform":     hInfo.Platform,
		"platformVer":  hInfo.PlatformVersion,
		"kernel":       hInfo.KernelVersion,
		"uptime_sec":   hInfo.Uptime,
		"boot_time":    time.Unix(int64(hInfo.BootTime), 0).UTC().Format(time.RFC3339),
		"mem_total":    vm.Total,
		"mem_used_pct": vm.UsedPercent,
		"load1":        ld.Load1,
		"load5":        ld.Load5,
		"load15":       ld.Load15,
		"cpu_model":    model,
		"supported":    IsSupported(model, m.Extra),
	}
	return core.Response{Status: "ok", Data: resp}, nil
}

// DetectCPUModel возвращает модель первого процессора.
func DetectCPUModel(ctx context.Context) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("cpu info: %w", err)
	}
	for _, info := range infos {
		if model := strings.TrimSpace(info.ModelName); model != "" {
			return model, nil
		}
	}
	return "", errors.New("cpu model not reported")
}
