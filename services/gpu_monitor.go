package services

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mnas/logger"
)

type GPUStat struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	Utilization   int    `json:"utilization"`
	MemoryUsedMB  int    `json:"memory_used_mb"`
	MemoryTotalMB int    `json:"memory_total_mb"`
}

// ResourceMonitor 汇报当前 GPU 负载。返回空列表表示没有可用设备，
// 调用方回落 CPU 编码。
type ResourceMonitor interface {
	CurrentUtilization(ctx context.Context) []GPUStat
}

type nvidiaSmiMonitor struct{}

func NewNvidiaSmiMonitor() ResourceMonitor {
	return nvidiaSmiMonitor{}
}

func (nvidiaSmiMonitor) CurrentUtilization(ctx context.Context) []GPUStat {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=utilization.gpu,memory.used,memory.total,name",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		logger.Debugf("nvidia-smi unavailable: %v", err)
		return nil
	}
	return parseNvidiaSmiOutput(string(out))
}

func parseNvidiaSmiOutput(out string) []GPUStat {
	var stats []GPUStat
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(line, ", ")
		if len(parts) < 4 {
			continue
		}
		util, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		used, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		total, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		stats = append(stats, GPUStat{
			Index:         len(stats),
			Name:          strings.TrimSpace(parts[3]),
			Utilization:   util,
			MemoryUsedMB:  used,
			MemoryTotalMB: total,
		})
	}
	return stats
}
