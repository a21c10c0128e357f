package datalake

import "testing"

// TestContentTypeFor 无法识别的扩展名回落到通用音频类型
func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("call-recording"); got != defaultContentType {
		t.Errorf("无扩展名: %q, want %q", got, defaultContentType)
	}
	if got := contentTypeFor("a.unknownext"); got != defaultContentType {
		t.Errorf("未知扩展名: %q, want %q", got, defaultContentType)
	}
	// .json 是 Go 内置表里的类型，不应走默认值
	if got := contentTypeFor("r1.json"); got == defaultContentType {
		t.Errorf(".json 不应回落到默认类型, got %q", got)
	}
}

// TestNewClientDefaults 并发数兜底
func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Location{}, 0)
	if c.concurrency != 3 {
		t.Errorf("concurrency = %d, want 3", c.concurrency)
	}

	loc := Location{Endpoint: "https://a.dfs.core.windows.net", Container: "fs", Directory: "in"}
	c.Bind(loc)
	if c.Location() != loc {
		t.Errorf("Location() = %+v, want %+v", c.Location(), loc)
	}
}
