package performance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parseErr(t *testing.T, body string) *ValidationError {
	t.Helper()
	_, err := ParseInput([]byte(body))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestParseInputMetricValues(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  int
		ok    bool
	}{
		{"zero", `0`, 0, true},
		{"upper bound", `100`, 100, true},
		{"numeric string", `"75"`, 75, true},
		{"integral float", `80.0`, 80, true},
		{"negative", `-1`, 0, false},
		{"too large", `101`, 0, false},
		{"fraction", `80.5`, 0, false},
		{"word", `"eighty"`, 0, false},
		{"bool", `true`, 0, false},
		{"object", `{}`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := ParseInput([]byte(`{"teamwork_is_unknown": null, "team_skills": ` + tc.value + `}`))
			require.Error(t, err, "unknown key must be rejected")

			in, err = ParseInput([]byte(`{"team_skills": ` + tc.value + `}`))
			if !tc.ok {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				require.Contains(t, verr.Fields, "team_skills")
				return
			}
			require.NoError(t, err)
			require.True(t, in.Metrics.ScoreSet[TeamSkills])
			require.Equal(t, tc.want, *in.Metrics.Scores[TeamSkills])
		})
	}
}

func TestParseInputRangeMessages(t *testing.T) {
	verr := parseErr(t, `{"attendance": 150, "punctuality": "x"}`)
	require.Equal(t, []string{msgMetricRange}, verr.Fields["attendance"])
	require.Equal(t, []string{msgMetricInteger}, verr.Fields["punctuality"])
}

func TestParseInputHugeWholeNumbersAreOutOfRange(t *testing.T) {
	verr := parseErr(t, `{"communication_skills": 99999999999999999999, "attitude": "-99999999999999999999", "cooperation": 1e400, "punctuality": 1e20}`)
	for _, key := range []string{"communication_skills", "attitude", "cooperation", "punctuality"} {
		require.Equal(t, []string{msgMetricRange}, verr.Fields[key], key)
	}

	verr = parseErr(t, `{"creativity": "Inf", "multitasking": 2.5}`)
	require.Equal(t, []string{msgMetricInteger}, verr.Fields["creativity"])
	require.Equal(t, []string{msgMetricInteger}, verr.Fields["multitasking"])
}

func TestParseInputRejectsUnknownKeys(t *testing.T) {
	verr := parseErr(t, `{"employee": "EMP001", "salary": 10}`)
	require.Contains(t, verr.Fields, "salary")

	verr = parseErr(t, `{"metrics": {"charisma": 50}}`)
	require.Contains(t, verr.Fields, "metrics.charisma")

	verr = parseErr(t, `{"metrics": [1, 2]}`)
	require.Contains(t, verr.Fields, "metrics")

	verr = parseErr(t, `[1, 2]`)
	require.Contains(t, verr.Fields, "non_field_errors")
}

func TestParseInputIgnoresReadOnlyKeys(t *testing.T) {
	in, err := ParseInput([]byte(`{"id": "x", "total_score": 10, "score_display": "10 / 1500", "remarks": "ok"}`))
	require.NoError(t, err)
	require.Equal(t, "ok", *in.Remarks)
}

func TestParseInputEmployeeAliases(t *testing.T) {
	in, err := ParseInput([]byte(`{"employee_emp_id": "EMP002"}`))
	require.NoError(t, err)
	require.Equal(t, "EMP002", *in.EmployeeEmpID)
	require.Equal(t, "employee_emp_id", in.EmployeeField)

	in, err = ParseInput([]byte(`{"employee_emp_id": "EMP002", "employee": " EMP001 "}`))
	require.NoError(t, err)
	require.Equal(t, "EMP001", *in.EmployeeEmpID)
	require.Equal(t, "employee", in.EmployeeField)

	in, err = ParseInput([]byte(`{"employee": ""}`))
	require.NoError(t, err)
	require.Nil(t, in.EmployeeEmpID)
}

func TestParseInputWeekAndYear(t *testing.T) {
	in, err := ParseInput([]byte(`{"week": "7", "year": 2024}`))
	require.NoError(t, err)
	require.Equal(t, 7, *in.Week)
	require.Equal(t, 2024, *in.Year)

	in, err = ParseInput([]byte(`{"week": 7, "week_number": 9, "year": "2024"}`))
	require.NoError(t, err)
	require.Equal(t, 9, *in.Week, "week_number wins over week")

	verr := parseErr(t, `{"week": "seven", "year": 2024}`)
	require.Contains(t, verr.Fields, "week")
	verr = parseErr(t, `{"week": 7, "year": 2024.5}`)
	require.Contains(t, verr.Fields, "year")
}

func TestParseInputReviewDateAndType(t *testing.T) {
	in, err := ParseInput([]byte(`{"review_date": "2024-03-06", "evaluation_type": "peer"}`))
	require.NoError(t, err)
	require.True(t, in.ReviewDate.Set)
	require.Equal(t, "2024-03-06", in.ReviewDate.Value.Format("2006-01-02"))
	require.Equal(t, EvaluationTypePeer, *in.EvaluationType)

	in, err = ParseInput([]byte(`{"review_date": null}`))
	require.NoError(t, err)
	require.True(t, in.ReviewDate.Set)
	require.Nil(t, in.ReviewDate.Value)

	verr := parseErr(t, `{"review_date": "06/03/2024", "evaluation_type": "Boss"}`)
	require.Contains(t, verr.Fields, "review_date")
	require.Contains(t, verr.Fields, "evaluation_type")
}

func TestParseInputComments(t *testing.T) {
	in, err := ParseInput([]byte(`{"creativity_comment": "bold ideas", "metrics": {"creativity_comment": null}}`))
	require.NoError(t, err)
	require.True(t, in.Metrics.CommentSet[Creativity])
	require.Equal(t, "", in.Metrics.Comments[Creativity])

	verr := parseErr(t, `{"creativity_comment": 5}`)
	require.Contains(t, verr.Fields, "creativity_comment")
}

func TestMetricPatchApply(t *testing.T) {
	var p MetricPatch
	p.setScore(Attitude, IntPtr(40))
	p.setScore(Punctuality, nil)
	p.setComment(Attitude, "improving")

	scores, comments := p.Apply(UniformScores(70), Comments{})
	require.Equal(t, 40, *scores[Attitude])
	require.Nil(t, scores[Punctuality])
	require.Equal(t, 70, *scores[Creativity])
	require.Equal(t, "improving", comments[Attitude])
}
