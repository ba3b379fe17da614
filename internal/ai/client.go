// Package ai 封装 OpenAI 兼容接口：Note 分类与文本向量
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ideafeed/internal/config"
	"ideafeed/internal/services"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const classifyPrompt = `你是一个想法整理助手。阅读用户的原始笔记，返回 JSON：
{"pillar": "所属主题，2-4 个词", "clarified_text": "整理后的通顺表述", "relevance": 0-10 的相关度, "refused": 是否为垃圾或违规内容}
只返回 JSON，不要其他文字。`

var ErrEmptyResponse = errors.New("ai: empty response")

type Client struct {
	client     *openai.Client
	chatModel  string
	embedModel string
}

// NewClient API Key 为空时返回 nil，调用方据此关闭分类流程
func NewClient(cfg *config.Config) *Client {
	if cfg.AIAPIKey == "" {
		return nil
	}
	aiConfig := openai.DefaultConfig(cfg.AIAPIKey)
	if cfg.AIBaseURL != "" {
		aiConfig.BaseURL = cfg.AIBaseURL
	}
	return &Client{
		client:     openai.NewClientWithConfig(aiConfig),
		chatModel:  cfg.AIChatModel,
		embedModel: cfg.AIEmbeddingModel,
	}
}

// Classify 请求模型输出 JSON 格式的分类结果
func (c *Client) Classify(ctx context.Context, text string) (*services.Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return parseClassification(resp.Choices[0].Message.Content)
}

// parseClassification 兼容模型把 JSON 包在 ``` 代码块里的情况
func parseClassification(content string) (*services.Classification, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	var out services.Classification
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("ai: decode classification: %w", err)
	}
	out.Pillar = strings.TrimSpace(out.Pillar)
	out.ClarifiedText = strings.TrimSpace(out.ClarifiedText)
	return &out, nil
}

// Embed 使用 Embedding 模型
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	// 去除换行符能提升向量质量
	text = strings.ReplaceAll(text, "\n", " ")

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}
