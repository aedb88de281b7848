package llm_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"ai-whiteboard/api/internal/llm"
	"ai-whiteboard/api/internal/llm/llmtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(ctx context.Context, p llm.Provider) (string, error) {
	return p.Generate(ctx, "instruction", "user")
}

func acceptFlowchart(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	return s, strings.HasPrefix(s, "flowchart")
}

func TestRun_PrimaryValid_SecondaryNeverCalled(t *testing.T) {
	primary := llmtest.New("gemini", llmtest.Text("flowchart TD\nA-->B"))
	secondary := llmtest.New("groq", llmtest.Text("flowchart LR\nX-->Y"))
	f := &llm.Fallback{Primary: primary, Secondary: secondary}

	res, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD\nA-->B", res.Value)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 0, secondary.Calls())
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, llm.OutcomeSuccess, res.Attempts[0].Kind)
}

func TestRun_PrimaryInvalid_SecondaryValid(t *testing.T) {
	primary := llmtest.New("gemini", llmtest.Text("Sure! Here is a diagram"))
	secondary := llmtest.New("groq", llmtest.Text("flowchart LR\nX-->Y"))
	f := &llm.Fallback{Primary: primary, Secondary: secondary}

	res, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.NoError(t, err)
	assert.Equal(t, "flowchart LR\nX-->Y", res.Value)
	assert.Equal(t, "groq", res.Provider)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, llm.OutcomeInvalidSyntax, res.Attempts[0].Kind)
	assert.Equal(t, llm.OutcomeSuccess, res.Attempts[1].Kind)
}

func TestRun_PrimaryEmpty_FallsBack(t *testing.T) {
	primary := llmtest.New("gemini", llmtest.Text("  \n "))
	secondary := llmtest.New("groq", llmtest.Text("flowchart LR\nX-->Y"))
	f := &llm.Fallback{Primary: primary, Secondary: secondary}

	res, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.NoError(t, err)
	assert.Equal(t, llm.OutcomeEmpty, res.Attempts[0].Kind)
	assert.Equal(t, 1, secondary.Calls())
}

func TestRun_PrimaryTransient_FallsBack(t *testing.T) {
	primary := llmtest.New("gemini", llmtest.Transient("gemini"))
	secondary := llmtest.New("groq", llmtest.Text("flowchart LR\nX-->Y"))
	f := &llm.Fallback{Primary: primary, Secondary: secondary}

	res, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.NoError(t, err)
	assert.Equal(t, "groq", res.Provider)
	assert.Empty(t, res.CredentialFailures())
}

func TestRun_BothTransient(t *testing.T) {
	f := &llm.Fallback{
		Primary:   llmtest.New("gemini", llmtest.Transient("gemini")),
		Secondary: llmtest.New("groq", llmtest.Transient("groq")),
	}

	_, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.Error(t, err)

	var ex *llm.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Len(t, ex.Attempts, 2)
	assert.Equal(t, llm.KindTransient, llm.KindOf(err))
	assert.Equal(t, http.StatusServiceUnavailable, llm.KindOf(err).HTTPStatus())
}

func TestRun_PrimaryCredential_NotReportedAsTransient(t *testing.T) {
	f := &llm.Fallback{
		Primary:   llmtest.New("gemini", llmtest.Credential("gemini")),
		Secondary: llmtest.New("groq", llmtest.Transient("groq")),
	}

	_, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.Error(t, err)
	assert.Equal(t, llm.KindCredential, llm.KindOf(err))
	assert.Equal(t, http.StatusUnauthorized, llm.KindOf(err).HTTPStatus())

	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "gemini", pe.Provider)
}

func TestRun_PrimaryCredential_SecondarySucceeds_Recorded(t *testing.T) {
	f := &llm.Fallback{
		Primary:   llmtest.New("gemini", llmtest.Credential("gemini")),
		Secondary: llmtest.New("groq", llmtest.Text("flowchart TD\nA-->B")),
	}

	res, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.NoError(t, err)
	require.Len(t, res.CredentialFailures(), 1)
	assert.Equal(t, "gemini", res.CredentialFailures()[0].Provider)
}

func TestRun_SecondaryInvalid_Exhausted(t *testing.T) {
	f := &llm.Fallback{
		Primary:   llmtest.New("gemini", llmtest.Transient("gemini")),
		Secondary: llmtest.New("groq", llmtest.Text("not a diagram")),
	}

	_, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.Error(t, err)
	assert.Equal(t, llm.KindExhausted, llm.KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, llm.KindOf(err).HTTPStatus())
}

func TestRun_SecondaryEmpty_Malformed(t *testing.T) {
	f := &llm.Fallback{
		Primary:   llmtest.New("gemini", llmtest.Text("nope")),
		Secondary: llmtest.New("groq", llmtest.Text("")),
	}

	_, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	assert.Equal(t, llm.KindMalformed, llm.KindOf(err))
}

func TestRun_AtMostTwoCalls(t *testing.T) {
	primary := llmtest.New("gemini", llmtest.Text("bad"))
	secondary := llmtest.New("groq", llmtest.Text("bad"))
	f := &llm.Fallback{Primary: primary, Secondary: secondary}

	_, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	require.Error(t, err)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestRun_PlainErrorIsWrappedAsTransient(t *testing.T) {
	f := &llm.Fallback{
		Primary:   llmtest.New("gemini", llmtest.Fail(errors.New("connection reset"))),
		Secondary: llmtest.New("groq", llmtest.Fail(errors.New("connection reset"))),
	}

	_, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, llm.KindTransient, pe.Kind)
}

func TestRun_CancelStopsBeforeSecondary(t *testing.T) {
	primary := llmtest.New("gemini", llmtest.Blocking())
	secondary := llmtest.New("groq", llmtest.Text("flowchart TD\nA-->B"))
	f := &llm.Fallback{Primary: primary, Secondary: secondary}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Run(ctx, "diagram", generate, acceptFlowchart)
	require.Error(t, err)
	assert.Equal(t, llm.KindCanceled, llm.KindOf(err))
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 0, secondary.Calls())
}

func TestRun_AlreadyCanceled(t *testing.T) {
	primary := llmtest.New("gemini", llmtest.Text("flowchart TD"))
	f := &llm.Fallback{Primary: primary}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Run(ctx, "diagram", generate, acceptFlowchart)
	assert.Equal(t, llm.KindCanceled, llm.KindOf(err))
	assert.Equal(t, 0, primary.Calls())
}

func TestRun_SecondaryOptional(t *testing.T) {
	f := &llm.Fallback{Primary: llmtest.New("gemini", llmtest.Text("bad"))}

	_, err := f.Run(context.Background(), "diagram", generate, acceptFlowchart)
	var ex *llm.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Len(t, ex.Attempts, 1)
}
