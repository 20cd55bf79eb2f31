package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExecute_Version(t *testing.T) {
	err := Execute("1.0.0", "abc123", "mathfuse", []string{"--version"})
	if err != nil {
		t.Errorf("Expected no error for --version, got: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"index", "--help"}, {"run", "--help"}, {"serve", "--help"}} {
		if err := Execute("1.0.0", "abc123", "mathfuse", args); err != nil {
			t.Errorf("Expected no error for %v, got: %v", args, err)
		}
	}
}

func TestExecute_InvalidFlag(t *testing.T) {
	err := Execute("1.0.0", "abc123", "mathfuse", []string{"serve", "--invalid-flag"})
	if err == nil {
		t.Error("Expected error for invalid flag")
	}
}

func TestExecute_InvalidTransport(t *testing.T) {
	err := Execute("1.0.0", "abc123", "mathfuse", []string{"serve", "--transport", "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid transport")
	}
	if !strings.Contains(err.Error(), "transport") {
		t.Errorf("Expected error about transport, got: %v", err)
	}
}

func TestExecute_MissingArguments(t *testing.T) {
	for _, args := range [][]string{{"index"}, {"run", "topics.xml"}, {"eval"}, {"topics"}} {
		if err := Execute("1.0.0", "abc123", "mathfuse", args); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
}

func TestExecute_MathFlagsExclusive(t *testing.T) {
	err := Execute("1.0.0", "abc123", "mathfuse", []string{"index", "posts.xml", "--math", "--mathpost"})
	if err == nil {
		t.Error("Expected error for --math with --mathpost")
	}
}

func TestExecute_Topics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.xml")
	content := `<Topics><Topic number="A.1"><Title>Limits</Title><Question>What is a limit?</Question></Topic></Topics>`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write topics: %v", err)
	}

	if err := Execute("1.0.0", "abc123", "mathfuse", []string{"topics", path}); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

func TestRunMain_Success(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	// --help should succeed
	runMain([]string{"mathfuse", "--help"}, mockExit)

	if exitCode != -1 {
		t.Errorf("Expected no exit call for --help, got exit code: %d", exitCode)
	}
}

func TestRunMain_Failure(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	runMain([]string{"mathfuse", "--invalid"}, mockExit)

	if exitCode != 1 {
		t.Errorf("Expected exit code 1 for invalid flag, got: %d", exitCode)
	}
}
