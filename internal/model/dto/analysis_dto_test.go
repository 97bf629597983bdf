package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/devpulse_tracker/internal/model"
)

func TestDecodeAnalysis_EnvelopeAndFlat(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "analysis envelope snake_case",
			body: `{"success":true,"analysis":{"analysis_id":"a1","status":"completed","progress":100,
				"code_quality":{"score":62,"grade":"C"},"fixes":[{"job_id":"j1","status":"fixing","progress":30}]}}`,
		},
		{
			name: "flat camelCase",
			body: `{"analysisId":"a1","status":"completed","progress":100,
				"codeQuality":{"score":62,"grade":"C"},"fix_jobs":[{"jobId":"j1","status":"fixing","progress":30}]}`,
		},
		{
			name: "data envelope with flat score",
			body: `{"data":{"id":"a1","status":"completed","progress":{"percentage":100},
				"quality_score":62,"grade":"C","fixes":[{"job_id":"j1","status":"fixing","progress":30}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := DecodeAnalysis([]byte(tt.body))
			require.NoError(t, err)

			assert.Equal(t, "a1", a.ID)
			assert.Equal(t, model.AnalysisCompleted, a.Status)
			assert.Equal(t, 100, a.Progress)
			score, ok := a.QualityScore()
			assert.True(t, ok)
			assert.Equal(t, 62, score)
			assert.Equal(t, "C", a.CodeQuality.Grade)

			require.Len(t, a.Fixes, 1)
			assert.Equal(t, "j1", a.Fixes[0].JobID)
			assert.Equal(t, "a1", a.Fixes[0].AnalysisID)
			assert.True(t, a.HasActiveFixes)
			assert.False(t, a.HasCompletedFixes)
			assert.False(t, a.Provisional)
		})
	}
}

func TestDecodeAnalysis_FlagsWithoutFixList(t *testing.T) {
	a, err := DecodeAnalysis([]byte(`{"analysis_id":"a2","status":"completed","has_active_fixes":true}`))
	require.NoError(t, err)

	assert.Nil(t, a.Fixes)
	assert.True(t, a.HasActiveFixes)
	assert.False(t, a.HasCompletedFixes)
}

func TestDecodeAnalysis_Empty(t *testing.T) {
	_, err := DecodeAnalysis([]byte(`{"success":true}`))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = DecodeAnalysis([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeAnalysis_OpaqueFields(t *testing.T) {
	body := `{"analysis_id":"a1","status":"completed","structure":{"totalFiles":42},
		"aiAnalysis":{"architecture":{"pattern":"MVC"}},"created_at":"2026-01-02T03:04:05.000Z"}`

	a, err := DecodeAnalysis([]byte(body))
	require.NoError(t, err)

	require.NotNil(t, a.Structure)
	assert.Equal(t, 42, a.Structure.TotalFiles)
	assert.JSONEq(t, `{"architecture":{"pattern":"MVC"}}`, string(a.AIAnalysis))
	assert.Equal(t, 2026, a.CreatedAt.Year())
}

func TestDecodeProgress(t *testing.T) {
	t.Run("nested progress object", func(t *testing.T) {
		p, err := DecodeProgress([]byte(`{"success":true,"status":"analyzing","progress":{"percentage":40,"message":"scanning"}}`))
		require.NoError(t, err)

		patch := p.ToPatch()
		require.NotNil(t, patch.Status)
		assert.Equal(t, model.AnalysisAnalyzing, *patch.Status)
		require.NotNil(t, patch.Progress)
		assert.Equal(t, 40, *patch.Progress)
		require.NotNil(t, patch.Message)
		assert.Equal(t, "scanning", *patch.Message)
	})

	t.Run("status only", func(t *testing.T) {
		p, err := DecodeProgress([]byte(`{"status":"completed"}`))
		require.NoError(t, err)

		patch := p.ToPatch()
		require.NotNil(t, patch.Status)
		assert.Equal(t, model.AnalysisCompleted, *patch.Status)
		assert.Nil(t, patch.Progress)
		assert.Nil(t, patch.Message)
	})

	t.Run("numeric progress clamped", func(t *testing.T) {
		p, err := DecodeProgress([]byte(`{"data":{"status":"cloning","progress":140.2,"message":"cloning repo"}}`))
		require.NoError(t, err)

		patch := p.ToPatch()
		assert.Equal(t, 100, *patch.Progress)
		assert.Equal(t, "cloning repo", *patch.Message)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := DecodeProgress([]byte(`{}`))
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})
}

func TestDecodeFixJob(t *testing.T) {
	p, err := DecodeFixJob([]byte(`{"success":true,"job":{"jobId":"j1","status":"completed","progress":100,
		"prUrl":"https://github.com/o/r/pull/9","pr_number":9,"highImpactIssues":[{"id":"i1","type":"BUG"}]}}`))
	require.NoError(t, err)

	patch := p.ToPatch()
	assert.True(t, patch.IsTerminal())
	assert.Equal(t, "https://github.com/o/r/pull/9", *patch.PRURL)
	assert.Equal(t, 9, *patch.PRNumber)
	require.Len(t, patch.HighImpactIssues, 1)
	assert.Nil(t, patch.Error)

	job := p.ToModel()
	assert.Equal(t, "j1", job.JobID)
	assert.Equal(t, model.FixJobCompleted, job.Status)
}

func TestListAnalysesResponse_Items(t *testing.T) {
	resp := ListAnalysesResponse{
		Analyses: []AnalysisPayload{
			{AnalysisID: "a1", Status: "completed"},
			{Status: "pending"}, // 没有 id 的记录被丢弃
			{AnalysisIDCamel: "a2", Status: "cloning"},
		},
	}

	items := resp.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a1", items[0].ID)
	assert.Equal(t, "a2", items[1].ID)
}

func TestSubmitAndTriggerResponses(t *testing.T) {
	submit := SubmitAnalysisResponse{AnalysisIDCamel: "a1"}
	assert.Equal(t, "a1", submit.GetAnalysisID())

	nested := SubmitAnalysisResponse{}
	nested.Data = &struct {
		AnalysisIDCamel string `json:"analysisId"`
		AnalysisID      string `json:"analysis_id"`
	}{AnalysisID: "a9"}
	assert.Equal(t, "a9", nested.GetAnalysisID())

	trigger := TriggerFixResponse{JobID: "j1"}
	assert.Equal(t, "j1", trigger.GetJobID())

	status := TokenStatusResponse{}
	assert.False(t, status.ServerHoldsToken())
	yes := true
	status.HasTokenSnake = &yes
	assert.True(t, status.ServerHoldsToken())
}
