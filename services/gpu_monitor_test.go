package services

import "testing"

func TestParseNvidiaSmiOutput(t *testing.T) {
	out := "35, 2048, 24576, NVIDIA GeForce RTX 4090\n" +
		"0, 512, 12288, NVIDIA GeForce RTX 3060\n"

	stats := parseNvidiaSmiOutput(out)
	if len(stats) != 2 {
		t.Fatalf("解析出 %d 块卡, 期望 2", len(stats))
	}

	want0 := GPUStat{Index: 0, Name: "NVIDIA GeForce RTX 4090", Utilization: 35, MemoryUsedMB: 2048, MemoryTotalMB: 24576}
	if stats[0] != want0 {
		t.Fatalf("stats[0] = %+v, 期望 %+v", stats[0], want0)
	}
	if stats[1].Index != 1 || stats[1].Name != "NVIDIA GeForce RTX 3060" {
		t.Fatalf("stats[1] = %+v", stats[1])
	}
}

func TestParseNvidiaSmiOutputSkipsMalformedLines(t *testing.T) {
	out := "35, 2048, 24576, NVIDIA GeForce RTX 4090\n" +
		"garbage line without commas\n" +
		"N/A, N/A, N/A, Broken GPU\n" +
		"12, 1024, 8192, NVIDIA T4\n"

	stats := parseNvidiaSmiOutput(out)
	if len(stats) != 2 {
		t.Fatalf("解析出 %d 块卡, 期望跳过坏行后剩 2", len(stats))
	}
	// 下标按有效行重新编号。
	if stats[1].Index != 1 || stats[1].Name != "NVIDIA T4" {
		t.Fatalf("stats[1] = %+v", stats[1])
	}
}

func TestParseNvidiaSmiOutputEmpty(t *testing.T) {
	if stats := parseNvidiaSmiOutput(""); stats != nil {
		t.Fatalf("空输出 = %+v, 期望 nil", stats)
	}
	if stats := parseNvidiaSmiOutput("\n\n"); stats != nil {
		t.Fatalf("空白输出 = %+v, 期望 nil", stats)
	}
}

func TestGPUBitrateLadder(t *testing.T) {
	cases := []struct {
		w, h    int
		bitrate string
	}{
		{1920, 1080, "2M"},
		{2560, 1440, "4M"},
		{3840, 2160, "8M"},
		{7680, 4320, "16M"},
	}
	for _, tc := range cases {
		bitrate, maxrate, bufsize := gpuBitrateLadder(tc.w, tc.h)
		if bitrate != tc.bitrate {
			t.Fatalf("gpuBitrateLadder(%d, %d) bitrate = %s, 期望 %s", tc.w, tc.h, bitrate, tc.bitrate)
		}
		if maxrate == "" || bufsize == "" {
			t.Fatalf("gpuBitrateLadder(%d, %d) 返回空的 maxrate/bufsize", tc.w, tc.h)
		}
	}
}

func TestCPUQualityLadder(t *testing.T) {
	if preset, crf := cpuQualityLadder(1920, 1080); preset != "medium" || crf != "23" {
		t.Fatalf("1080p = %s/%s, 期望 medium/23", preset, crf)
	}
	if preset, crf := cpuQualityLadder(2560, 1440); preset != "fast" || crf != "24" {
		t.Fatalf("1440p = %s/%s, 期望 fast/24", preset, crf)
	}
	if preset, crf := cpuQualityLadder(3840, 2160); preset != "faster" || crf != "25" {
		t.Fatalf("4K = %s/%s, 期望 faster/25", preset, crf)
	}
}
