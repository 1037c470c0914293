package config

import "testing"

func TestMergeConfigsPreservesBooleanDefaults(t *testing.T) {
	base := DefaultConfig()
	base.Server.SecureCookies = true
	override := &Config{
		Server: ServerConfig{Listen: "0.0.0.0:80"},
	}
	raw := map[string]any{
		"server": map[string]any{
			"listen": "0.0.0.0:80",
		},
	}

	mergeConfigs(base, override, raw)

	if !base.Server.SecureCookies {
		t.Fatalf("secure_cookies should remain true when not overridden")
	}
	if base.Server.Listen != "0.0.0.0:80" {
		t.Fatalf("expected listen to be overridden")
	}
}

func TestMergeConfigsRespectsBooleanOverrides(t *testing.T) {
	base := DefaultConfig()
	base.Tracing.Enabled = true
	override := &Config{}
	raw := map[string]any{
		"tracing": map[string]any{
			"enabled": false,
		},
	}

	mergeConfigs(base, override, raw)

	if base.Tracing.Enabled {
		t.Fatalf("expected tracing.enabled to update when override is explicit")
	}
}

func TestMergeConfigsKeepsZeroDurations(t *testing.T) {
	base := DefaultConfig()
	want := base.Search.QuietPeriod
	mergeConfigs(base, &Config{}, map[string]any{"search": map[string]any{}})
	if base.Search.QuietPeriod != want {
		t.Fatalf("quiet period changed to %s", base.Search.QuietPeriod)
	}
}

func TestBoolFieldSet(t *testing.T) {
	raw := map[string]any{"a": map[string]any{"b": false}}
	if !boolFieldSet(raw, "a", "b") {
		t.Fatal("expected a.b to be set")
	}
	if boolFieldSet(raw, "a", "c") || boolFieldSet(raw, "x") || boolFieldSet(nil, "a") {
		t.Fatal("unexpected set field")
	}
}
