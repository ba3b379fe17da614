package utils

import (
	"ideafeed/internal/models"
)

type RankConfig struct {
	WeightLike    float64 // 1
	WeightComment float64 // 3
	WeightShare   float64 // 5
	WeightSave    float64 // 10

	ColdStartBoost float64 // 新内容加分 (50)
	ColdStartHours float64 // 加分窗口 (2h)
}

// TierRule 原始分数达到 MinRaw 即落入该等级，按 MinRaw 从高到低排列
type TierRule struct {
	MinRaw     float64
	Multiplier float64
	Tier       models.Tier
}

var DefaultConfig = RankConfig{
	WeightLike:     1,
	WeightComment:  3,
	WeightShare:    5,
	WeightSave:     10,
	ColdStartBoost: 50,
	ColdStartHours: 2,
}

var TierRules = []TierRule{
	{MinRaw: 10000, Multiplier: 5.0, Tier: models.TierGlobal},
	{MinRaw: 2000, Multiplier: 3.0, Tier: models.TierNational},
	{MinRaw: 500, Multiplier: 2.0, Tier: models.TierViral},
	{MinRaw: 100, Multiplier: 1.5, Tier: models.TierTrending},
}

// Engagement 一条内容的互动计数快照
type Engagement struct {
	Likes    int
	Comments int
	Shares   int
	Saves    int
}

// EngagementOf 从帖子计数生成快照
func EngagementOf(p *models.Post) Engagement {
	return Engagement{Likes: p.Likes, Comments: p.Comments, Shares: p.Shares, Saves: p.Saves}
}

// Virality 一次计算的完整结果
type Virality struct {
	Engagement float64
	Boost      float64
	Raw        float64
	Multiplier float64
	Score      float64
	Tier       models.Tier
}

// CalculateVirality 纯函数：互动加权 + 冷启动加分，再按原始分数所在等级放大
func CalculateVirality(e Engagement, ageHours float64) Virality {
	if ageHours < 0 {
		ageHours = 0
	}

	weighted := float64(e.Likes)*DefaultConfig.WeightLike +
		float64(e.Comments)*DefaultConfig.WeightComment +
		float64(e.Shares)*DefaultConfig.WeightShare +
		float64(e.Saves)*DefaultConfig.WeightSave

	var boost float64
	if ageHours < DefaultConfig.ColdStartHours {
		boost = DefaultConfig.ColdStartBoost
	}

	raw := weighted + boost
	multiplier, tier := TierFor(raw)

	return Virality{
		Engagement: weighted,
		Boost:      boost,
		Raw:        raw,
		Multiplier: multiplier,
		Score:      raw * multiplier,
		Tier:       tier,
	}
}

// TierFor 下限包含：raw=100 为 trending，99.99 仍是 local
func TierFor(raw float64) (float64, models.Tier) {
	for _, rule := range TierRules {
		if raw >= rule.MinRaw {
			return rule.Multiplier, rule.Tier
		}
	}
	return 1.0, models.TierLocal
}

// ColdStartScore 刚发布、零互动内容的初始分数
func ColdStartScore() Virality {
	return CalculateVirality(Engagement{}, 0)
}
