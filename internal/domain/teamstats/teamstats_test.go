package teamstats_test

import (
	"errors"
	"testing"

	model "github.com/okian/fairshare/internal/domain/model"
	teamstats "github.com/okian/fairshare/internal/domain/teamstats"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWeights(t *testing.T) {
	Convey("Given weight distribution analysis", t, func() {
		Convey("When a team declares uneven weights", func() {
			team := model.Team{
				ID:       "team-uneven",
				RawScore: 90,
				Members: []model.Member{
					{ID: "a", Weight: 0.5},
					{ID: "b", Weight: 0.3},
					{ID: "c", Weight: 0.2},
				},
			}

			Convey("Then the spread describes the distribution", func() {
				sp, err := teamstats.Weights(team)
				So(err, ShouldBeNil)
				So(sp.EqualShare, ShouldAlmostEqual, 1.0/3.0, 1e-12)
				So(sp.Min, ShouldEqual, 0.2)
				So(sp.Max, ShouldEqual, 0.5)
				So(sp.Mean, ShouldAlmostEqual, 1.0/3.0, 1e-9)
				So(sp.Median, ShouldEqual, 0.3)
				So(sp.Variance, ShouldAlmostEqual, 0.0155555556, 1e-6)
				So(sp.StdDev, ShouldAlmostEqual, 0.1247219, 1e-6)
				So(sp.MaxSkew, ShouldAlmostEqual, 0.5-1.0/3.0, 1e-9)
			})
		})

		Convey("When every member declares the equal share", func() {
			team := model.Team{
				ID:       "team-flat",
				RawScore: 50,
				Members: []model.Member{
					{ID: "a", Weight: 0.25},
					{ID: "b", Weight: 0.25},
					{ID: "c", Weight: 0.25},
					{ID: "d", Weight: 0.25},
				},
			}

			Convey("Then dispersion collapses to zero", func() {
				sp, err := teamstats.Weights(team)
				So(err, ShouldBeNil)
				So(sp.Variance, ShouldAlmostEqual, 0, 1e-12)
				So(sp.StdDev, ShouldAlmostEqual, 0, 1e-12)
				So(sp.MaxSkew, ShouldAlmostEqual, 0, 1e-12)
				So(sp.Min, ShouldEqual, sp.Max)
			})
		})

		Convey("When the team has a single member", func() {
			team := model.Team{
				ID:       "team-solo",
				RawScore: 70,
				Members:  []model.Member{{ID: "only", Weight: 1}},
			}

			Convey("Then the spread degenerates cleanly", func() {
				sp, err := teamstats.Weights(team)
				So(err, ShouldBeNil)
				So(sp.EqualShare, ShouldEqual, 1)
				So(sp.Min, ShouldEqual, 1)
				So(sp.Max, ShouldEqual, 1)
				So(sp.MaxSkew, ShouldEqual, 0)
			})
		})

		Convey("When the team has no members", func() {
			team := model.Team{ID: "team-empty", RawScore: 10}

			Convey("Then no data is reported", func() {
				_, err := teamstats.Weights(team)
				So(errors.Is(err, teamstats.ErrNoData), ShouldBeTrue)
			})
		})
	})
}

func TestScores(t *testing.T) {
	Convey("Given score distribution analysis", t, func() {
		Convey("When a result mixes capped and regular scores", func() {
			result := model.TeamResult{
				TeamID: "team-mixed",
				Scores: []model.MemberScore{
					{MemberID: "lead", Score: 120, Capped: true},
					{MemberID: "aide", Score: 78},
				},
			}

			Convey("Then the spread reflects both", func() {
				sp, err := teamstats.Scores(result)
				So(err, ShouldBeNil)
				So(sp.Min, ShouldEqual, 78)
				So(sp.Max, ShouldEqual, 120)
				So(sp.Mean, ShouldAlmostEqual, 99, 1e-9)
				So(sp.Median, ShouldAlmostEqual, 99, 1e-9)
				So(sp.CappedCount, ShouldEqual, 1)
			})
		})

		Convey("When all scores are identical", func() {
			result := model.TeamResult{
				TeamID: "team-same",
				Scores: []model.MemberScore{
					{MemberID: "a", Score: 50},
					{MemberID: "b", Score: 50},
					{MemberID: "c", Score: 50},
				},
			}

			Convey("Then dispersion is zero and nothing is capped", func() {
				sp, err := teamstats.Scores(result)
				So(err, ShouldBeNil)
				So(sp.StdDev, ShouldAlmostEqual, 0, 1e-12)
				So(sp.Mean, ShouldEqual, 50)
				So(sp.CappedCount, ShouldEqual, 0)
			})
		})

		Convey("When the result holds no scores", func() {
			result := model.TeamResult{TeamID: "team-none"}

			Convey("Then no data is reported", func() {
				_, err := teamstats.Scores(result)
				So(errors.Is(err, teamstats.ErrNoData), ShouldBeTrue)
			})
		})
	})
}
