package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LuckyWindsck/mise/internal/app"
)

func TestRun_ProviderFailure(t *testing.T) {
	var stderr bytes.Buffer
	code := run(context.Background(), nil, &stderr, func(context.Context) (*app.Components, error) {
		return nil, errors.New("wiring exploded")
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "wiring exploded")
}
