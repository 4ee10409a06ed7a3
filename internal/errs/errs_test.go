package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	err := Network("fetch feed", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrParse)
	assert.Equal(t, "fetch feed: network error: context deadline exceeded", err.Error())
}

func TestErrorSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("run: %w", PublishRejected("publish", errors.New("token expired")))

	assert.ErrorIs(t, err, ErrPublishRejected)
	assert.False(t, IsNetwork(err))

	var e *Error
	if assert.ErrorAs(t, err, &e) {
		assert.Equal(t, "publish", e.Op)
	}
}

func TestConfigMissingListsNames(t *testing.T) {
	err := ConfigMissing("WECHAT_API_KEY", "OPENROUTER_API_KEY|DOUBAO_API_KEY")

	assert.ErrorIs(t, err, ErrConfigMissing)
	assert.Contains(t, err.Error(), "WECHAT_API_KEY")
	assert.Contains(t, err.Error(), "DOUBAO_API_KEY")
}

func TestErrorWithoutCause(t *testing.T) {
	err := ClassificationEmpty("classify", nil)

	assert.ErrorIs(t, err, ErrClassificationEmpty)
	assert.Equal(t, "classify: classification empty", err.Error())
}
