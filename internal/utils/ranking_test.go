package utils

import (
	"ideafeed/internal/models"
	"testing"
)

func TestCalculateViralityColdStart(t *testing.T) {
	v := CalculateVirality(Engagement{}, 0)
	if v.Raw != 50 {
		t.Errorf("raw = %v, want 50", v.Raw)
	}
	if v.Tier != models.TierLocal {
		t.Errorf("tier = %s, want local", v.Tier)
	}
	if v.Score != 50 {
		t.Errorf("score = %v, want 50", v.Score)
	}

	v = CalculateVirality(Engagement{Saves: 1}, 0.5)
	if v.Raw != 60 || v.Tier != models.TierLocal {
		t.Errorf("one save: raw = %v tier = %s, want 60 local", v.Raw, v.Tier)
	}
}

func TestCalculateViralityTrendingScenario(t *testing.T) {
	v := CalculateVirality(Engagement{Likes: 100, Comments: 20, Saves: 10}, 5)
	if v.Engagement != 260 {
		t.Errorf("engagement = %v, want 260", v.Engagement)
	}
	if v.Boost != 0 {
		t.Errorf("boost = %v, want 0", v.Boost)
	}
	if v.Tier != models.TierTrending {
		t.Errorf("tier = %s, want trending", v.Tier)
	}
	if v.Score != 390 {
		t.Errorf("score = %v, want 390", v.Score)
	}
}

func TestCalculateViralityWeights(t *testing.T) {
	v := CalculateVirality(Engagement{Likes: 1, Comments: 1, Shares: 1, Saves: 1}, 10)
	if v.Engagement != 19 {
		t.Errorf("engagement = %v, want 19", v.Engagement)
	}
}

func TestColdStartBoostWindow(t *testing.T) {
	e := Engagement{Likes: 7, Shares: 2}
	young := CalculateVirality(e, 1.99)
	old := CalculateVirality(e, 2)
	if young.Boost != 50 {
		t.Errorf("boost at 1.99h = %v, want 50", young.Boost)
	}
	if old.Boost != 0 {
		t.Errorf("boost at 2h = %v, want 0", old.Boost)
	}
	if young.Score <= old.Score {
		t.Errorf("young score %v should exceed old score %v", young.Score, old.Score)
	}

	// 时钟偏差导致的负数年龄按 0 处理
	if v := CalculateVirality(e, -3); v.Boost != 50 {
		t.Errorf("boost at negative age = %v, want 50", v.Boost)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		raw        float64
		tier       models.Tier
		multiplier float64
	}{
		{0, models.TierLocal, 1},
		{99.99, models.TierLocal, 1},
		{100, models.TierTrending, 1.5},
		{499.5, models.TierTrending, 1.5},
		{500, models.TierViral, 2},
		{1999, models.TierViral, 2},
		{2000, models.TierNational, 3},
		{9999.99, models.TierNational, 3},
		{10000, models.TierGlobal, 5},
		{1e7, models.TierGlobal, 5},
	}
	for _, c := range cases {
		m, tier := TierFor(c.raw)
		if tier != c.tier || m != c.multiplier {
			t.Errorf("TierFor(%v) = (%v, %s), want (%v, %s)", c.raw, m, tier, c.multiplier, c.tier)
		}
	}
}

func TestCalculateViralityGlobal(t *testing.T) {
	v := CalculateVirality(Engagement{Saves: 1000}, 48)
	if v.Tier != models.TierGlobal {
		t.Errorf("tier = %s, want global", v.Tier)
	}
	if v.Score != 50000 {
		t.Errorf("score = %v, want 50000", v.Score)
	}
}
