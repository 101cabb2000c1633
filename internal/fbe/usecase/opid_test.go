package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ohcore/fbekeyd/internal/fbe/usecase"
)

func TestOpID_EmptyWithoutWithOpID(t *testing.T) {
	assert.Equal(t, "", usecase.OpID(context.Background()))
}

func TestWithOpID_AttachesParsableV7UUID(t *testing.T) {
	ctx := usecase.WithOpID(context.Background())

	id := usecase.OpID(ctx)
	assert.NotEmpty(t, id)

	parsed, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestWithOpID_FreshIDPerCall(t *testing.T) {
	first := usecase.OpID(usecase.WithOpID(context.Background()))
	second := usecase.OpID(usecase.WithOpID(context.Background()))

	assert.NotEqual(t, first, second)
}

func TestLoggerWithOpID_AttachesFieldWhenPresent(t *testing.T) {
	var buf strings.Builder
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := usecase.WithOpID(context.Background())
	logger := usecase.LoggerWithOpID(ctx, base)
	logger.Info("did a thing")

	assert.Contains(t, buf.String(), "op_id=")
	assert.Contains(t, buf.String(), usecase.OpID(ctx))
}

func TestLoggerWithOpID_UnchangedWithoutOpID(t *testing.T) {
	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	logger := usecase.LoggerWithOpID(context.Background(), base)

	assert.Same(t, base, logger)
}

func TestLoggerWithOpID_NilLoggerStaysNil(t *testing.T) {
	ctx := usecase.WithOpID(context.Background())
	assert.Nil(t, usecase.LoggerWithOpID(ctx, nil))
}
