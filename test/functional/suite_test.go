package functional

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	homeDir      string
	registryPath string
	binPath      string
	stdout       string
	stderr       string
	exitCode     int
}

func getState(ctx context.Context) *testState {
	if s, ok := ctx.Value(stateKey).(*testState); ok {
		return s
	}
	return nil
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("EIM_TEST_BINARY")
	if binPath == "" {
		t.Skip("EIM_TEST_BINARY not set; point it at a built eim binary")
	}

	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}

	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, absBin)
		},
		Options: opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext, binPath string) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		homeDir, err := os.MkdirTemp("", "eim-functional-*")
		if err != nil {
			return ctx, err
		}
		s := &testState{
			homeDir:      homeDir,
			registryPath: filepath.Join(homeDir, "eim_idf.json"),
			binPath:      binPath,
		}
		return setState(ctx, s), nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if s := getState(ctx); s != nil {
			os.RemoveAll(s.homeDir)
		}
		return ctx, nil
	})

	registerSteps(ctx)
}
