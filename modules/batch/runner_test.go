package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mirage-studio-server/modules/common/database"
	"mirage-studio-server/modules/common/gemini"
)

func runSingleTask(t *testing.T, f *fixture) Outcome {
	t.Helper()
	ids, err := f.artifacts.CreatePlaceholders(context.Background(), "member-1", 1, database.PlaceholderFields{BatchToken: "tok"})
	require.NoError(t, err)
	return f.orch.runTask(context.Background(), baseRequest(1), ids[0])
}

func TestRunTaskTimeoutReason(t *testing.T) {
	f := newFixture(100)
	f.orch.taskTimeout = 10 * time.Millisecond
	f.generator.generate = func(ctx context.Context, _ int) (*gemini.GeneratedImage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	outcome := runSingleTask(t, f)
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonTimeout, outcome.FailureReason)
}

func TestRunTaskGenerationErrorReason(t *testing.T) {
	f := newFixture(100)
	f.generator.generate = func(_ context.Context, _ int) (*gemini.GeneratedImage, error) {
		return nil, errors.New("model refused")
	}

	outcome := runSingleTask(t, f)
	assert.Equal(t, ReasonGeneration, outcome.FailureReason)
}

func TestRunTaskStorageErrorReason(t *testing.T) {
	f := newFixture(100)
	f.assets.uploadErr = errors.New("bucket gone")

	outcome := runSingleTask(t, f)
	assert.Equal(t, ReasonStorage, outcome.FailureReason)
}

func TestRunTaskFinalizeRetriesWithMinimalFields(t *testing.T) {
	f := newFixture(100)
	attempts := 0
	f.artifacts.finalize = func(_ int64, renditions *database.Renditions) error {
		attempts++
		if renditions != nil {
			return fmt.Errorf("unknown column preview_path")
		}
		return nil
	}

	outcome := runSingleTask(t, f)
	assert.True(t, outcome.Succeeded)
	assert.Equal(t, 2, attempts)
}

func TestRunTaskFinalizeExhaustedIsDatabaseError(t *testing.T) {
	f := newFixture(100)
	f.artifacts.finalize = func(_ int64, _ *database.Renditions) error {
		return errors.New("db offline")
	}

	outcome := runSingleTask(t, f)
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, ReasonDatabase, outcome.FailureReason)
}

func TestRunTaskRenditionFailureIsNonFatal(t *testing.T) {
	f := newFixture(100)
	f.orch.renditions = &fakeRenditions{err: errors.New("webp encoder broke")}

	outcome := runSingleTask(t, f)
	assert.True(t, outcome.Succeeded)
	assert.NotEmpty(t, outcome.AssetPath)
}
