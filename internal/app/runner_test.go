package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/mathfuse/internal/config"
	"github.com/sha1n/mathfuse/internal/telemetry"
)

// noopValidate is a no-op validation function for tests
func noopValidate(*config.Settings) error {
	return nil
}

func settingsWith(transport string) func(*pflag.FlagSet) (*config.Settings, error) {
	return func(*pflag.FlagSet) (*config.Settings, error) {
		return &config.Settings{Serve: config.ServeSettings{Transport: transport}}, nil
	}
}

func emptyServer(*config.Settings, *telemetry.Metrics) (*mcp.Server, func(), error) {
	impl := &mcp.Implementation{Name: "test", Version: "1.0"}
	return mcp.NewServer(impl, nil), nil, nil
}

func TestRunWithDeps_ErrorCases(t *testing.T) {
	tests := []struct {
		name           string
		params         RunParams
		wantErrContain string
	}{
		{
			name: "LoadSettings error",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return nil, errors.New("settings error")
				},
				ValidSettings: noopValidate,
			},
			wantErrContain: "failed to load settings",
		},
		{
			name: "ValidSettings error",
			params: RunParams{
				LoadSettings: settingsWith(config.TransportSSE),
				ValidSettings: func(*config.Settings) error {
					return errors.New("validation error")
				},
			},
			wantErrContain: "invalid configuration",
		},
		{
			name: "invalid log level",
			params: RunParams{
				LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
					return &config.Settings{Logging: config.LoggingSettings{Level: "loud"}}, nil
				},
				ValidSettings: noopValidate,
			},
			wantErrContain: "invalid configuration",
		},
		{
			name: "CreateServer error",
			params: RunParams{
				LoadSettings:  settingsWith(config.TransportSSE),
				ValidSettings: noopValidate,
				CreateServer: func(*config.Settings, *telemetry.Metrics) (*mcp.Server, func(), error) {
					return nil, nil, errors.New("create server error")
				},
			},
			wantErrContain: "create server error",
		},
		{
			name: "StartSSEServer error",
			params: RunParams{
				LoadSettings:  settingsWith(config.TransportSSE),
				ValidSettings: noopValidate,
				CreateServer: func(*config.Settings, *telemetry.Metrics) (*mcp.Server, func(), error) {
					return nil, nil, nil
				},
				StartSSEServer: func(*mcp.Server, *config.Settings, *telemetry.Metrics) error {
					return errors.New("sse start error")
				},
			},
			wantErrContain: "sse start error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunWithDeps(context.Background(), tt.params, nil, "test")
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErrContain)
			}
			if !strings.Contains(err.Error(), tt.wantErrContain) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErrContain, err.Error())
			}
		})
	}
}

func TestRunWithDeps_Cleanup(t *testing.T) {
	cleanupCalled := false
	params := RunParams{
		LoadSettings:  settingsWith(config.TransportSSE),
		ValidSettings: noopValidate,
		CreateServer: func(*config.Settings, *telemetry.Metrics) (*mcp.Server, func(), error) {
			return nil, func() { cleanupCalled = true }, nil
		},
		StartSSEServer: func(*mcp.Server, *config.Settings, *telemetry.Metrics) error {
			return errors.New("intentional error to trigger cleanup")
		},
	}

	_ = RunWithDeps(context.Background(), params, nil, "test")

	if !cleanupCalled {
		t.Error("Cleanup was not called")
	}
}

func TestRunWithDeps_SharesMetrics(t *testing.T) {
	var created, started *telemetry.Metrics
	params := RunParams{
		LoadSettings:  settingsWith(config.TransportSSE),
		ValidSettings: noopValidate,
		CreateServer: func(s *config.Settings, m *telemetry.Metrics) (*mcp.Server, func(), error) {
			created = m
			return emptyServer(s, m)
		},
		StartSSEServer: func(_ *mcp.Server, _ *config.Settings, m *telemetry.Metrics) error {
			started = m
			return nil
		},
	}

	if err := RunWithDeps(context.Background(), params, nil, "test"); err != nil {
		t.Fatalf("RunWithDeps failed: %v", err)
	}
	if created == nil || created != started {
		t.Errorf("metrics not shared: created %p, started %p", created, started)
	}
}

func TestDefaultRunParams(t *testing.T) {
	params := DefaultRunParams()

	if params.LoadSettings == nil {
		t.Error("LoadSettings is nil")
	}
	if params.ValidSettings == nil {
		t.Error("ValidSettings is nil")
	}
	if params.StartSSEServer == nil {
		t.Error("StartSSEServer is nil")
	}
	if params.CreateServer == nil {
		t.Error("CreateServer is nil")
	}
	if params.stdout() == nil {
		t.Error("stdout is nil")
	}
}

func TestRunWithDeps_StdioWithCustomTransport(t *testing.T) {
	transportUsed := false
	customTransport := &mockTransport{
		connectCalled: &transportUsed,
	}

	params := RunParams{
		LoadSettings:      settingsWith(config.TransportStdio),
		ValidSettings:     noopValidate,
		CreateServer:      emptyServer,
		CustomIOTransport: customTransport,
	}

	// Use a cancelled context to avoid hanging
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = RunWithDeps(ctx, params, nil, "test")

	if !transportUsed {
		t.Error("Custom transport Connect was not called")
	}
}

func TestCreateMCPServer_WithoutIndexes(t *testing.T) {
	settings := &config.Settings{
		Index: config.IndexSettings{Dir: t.TempDir(), Name: "missing", Model: "BM25"},
	}

	server, cleanup, err := CreateMCPServer(settings, telemetry.New())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if server == nil {
		t.Error("Expected server to be created")
	}
	if cleanup != nil {
		cleanup()
	}
}

func TestCreateMCPServer_InvalidModel(t *testing.T) {
	settings := &config.Settings{Index: config.IndexSettings{Model: "bert"}}

	if _, _, err := CreateMCPServer(settings, nil); err == nil {
		t.Error("Expected error for unknown model")
	}
}

// mockTransport implements mcp.Transport for testing
type mockTransport struct {
	connectCalled *bool
}

func (m *mockTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	if m.connectCalled != nil {
		*m.connectCalled = true
	}
	return nil, errors.New("mock transport - no real connection")
}
