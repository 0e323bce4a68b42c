package engine

import (
	"os"
	"testing"

	_ "github.com/formulary-dev/formulary/internal/testhelper"
)

// TestMain runs the package tests with logging silenced by testhelper
func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func ptr(f float64) *float64 { return &f }
