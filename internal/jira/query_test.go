package jira

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tuannvm/jira-tracker/internal/models"
)

func TestSearchQuery(t *testing.T) {
	var qb QueryBuilder

	tests := []struct {
		name string
		sc   models.SearchCriteria
		want Query
	}{
		{
			name: "empty",
			sc:   models.NewSearchCriteria(),
			want: "",
		},
		{
			name: "product and release",
			sc: models.NewSearchCriteria(
				models.WithProduct("EAP"),
				models.WithRelease(models.Release{Version: "7.4.0.GA"}),
			),
			want: `project = "EAP" AND fixVersion = "7.4.0.GA"`,
		},
		{
			name: "milestone and status",
			sc: models.NewSearchCriteria(
				models.WithRelease(models.Release{Milestone: "ER1"}),
				models.WithStatus(models.StatusOnQA),
			),
			want: `cf[12311240] = "ER1" AND status = "Ready for QA"`,
		},
		{
			name: "people and component",
			sc: models.NewSearchCriteria(
				models.WithAssignee("jdoe"),
				models.WithReporter("asmith"),
				models.WithComponent("Security"),
			),
			want: `assignee = "jdoe" AND reporter = "asmith" AND component = "Security"`,
		},
		{
			name: "stage flags sorted",
			sc: models.NewSearchCriteria(models.WithStage(models.Stage{
				models.FlagQE:  models.FlagNoSet,
				models.FlagDev: models.FlagAccepted,
			})),
			want: `cf[12311243] = "+" AND cf[12311244] IS EMPTY`,
		},
		{
			name: "dates",
			sc: models.NewSearchCriteria(
				models.WithStartDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
				models.WithEndDate(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)),
				models.WithLastUpdated(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)),
			),
			want: `created >= "2024-01-02" AND created <= "2024-02-03" AND updated >= "2024-03-04"`,
		},
		{
			name: "escaping",
			sc:   models.NewSearchCriteria(models.WithProduct(`EA"P\`)),
			want: `project = "EA\"P\\"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, qb.SearchQuery(tt.sc))
		})
	}
}

func TestSearchQueryDeterministic(t *testing.T) {
	var qb QueryBuilder
	build := func() models.SearchCriteria {
		return models.NewSearchCriteria(
			models.WithProduct("EAP"),
			models.WithRelease(models.Release{Version: "7.4.0.GA"}),
			models.WithStage(models.Stage{models.FlagPM: models.FlagSet, models.FlagDev: models.FlagSet, models.FlagQE: models.FlagSet}),
		)
	}
	first := qb.SearchQuery(build())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, qb.SearchQuery(build()))
	}
}

func TestDateRangeQuery(t *testing.T) {
	var qb QueryBuilder
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	release := models.WithRelease(models.Release{Version: "7.4.1.GA"})

	assert.Equal(t,
		Query(`project = "JBEAP" AND fixVersion CHANGED TO "7.4.1.GA" DURING ("2024-05-01", "2024-05-31")`),
		qb.DateRangeQuery(models.NewSearchCriteria(models.WithProduct("JBEAP"), release, models.WithStartDate(from), models.WithEndDate(to))))
	assert.Equal(t,
		Query(`fixVersion CHANGED TO "7.4.1.GA" AFTER "2024-05-01"`),
		qb.DateRangeQuery(models.NewSearchCriteria(release, models.WithStartDate(from))))
	assert.Equal(t,
		Query(`fixVersion CHANGED TO "7.4.1.GA" BEFORE "2024-05-31"`),
		qb.DateRangeQuery(models.NewSearchCriteria(release, models.WithEndDate(to))))
	assert.Equal(t,
		Query(`project = "JBEAP"`),
		qb.DateRangeQuery(models.NewSearchCriteria(models.WithProduct("JBEAP"))))
}

func TestMultiIssueQuery(t *testing.T) {
	var qb QueryBuilder

	t.Run("order independent", func(t *testing.T) {
		a := qb.MultiIssueQuery([]string{"WFLY-2", "JBEAP-1", "WFLY-10"})
		b := qb.MultiIssueQuery([]string{"WFLY-10", "WFLY-2", "JBEAP-1"})
		assert.Equal(t, a, b)
		assert.Equal(t, Query(`key in ("JBEAP-1", "WFLY-10", "WFLY-2")`), a)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		assert.Equal(t, Query(`key in ("A-1")`), qb.MultiIssueQuery([]string{"A-1", "A-1", " "}))
	})

	t.Run("empty matches nothing", func(t *testing.T) {
		assert.Equal(t, MatchNothing, qb.MultiIssueQuery(nil))
		assert.Equal(t, MatchNothing, qb.MultiIssueQuery([]string{""}))
	})

	t.Run("input untouched", func(t *testing.T) {
		keys := []string{"B-1", "A-1"}
		qb.MultiIssueQuery(keys)
		assert.Equal(t, []string{"B-1", "A-1"}, keys)
	})
}

func TestSearchCriteriaStageIsCopied(t *testing.T) {
	stage := models.Stage{models.FlagPM: models.FlagSet}
	sc := models.NewSearchCriteria(models.WithStage(stage))
	stage[models.FlagDev] = models.FlagSet

	got := sc.Stage()
	got[models.FlagQE] = models.FlagSet
	assert.Len(t, sc.Stage(), 1)
}
