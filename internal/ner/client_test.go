package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer 创建一个返回固定标注结果的测试服务
func newTestServer(t *testing.T, resp *SpacyResponse) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/annotate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req SpacyRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.NotEmpty(t, req.Text)

		// 回显请求文本
		out := *resp
		if out.Text == "" {
			out.Text = req.Text
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}))
}

func TestSpacyClientAnnotate(t *testing.T) {
	serverResp := &SpacyResponse{
		Ents: []EntitySpan{
			{Start: 0, End: 15, Label: LabelPerson},
			{Start: 36, End: 44, Label: LabelGpe},
		},
		Model: ModelEnCoreWebSm,
	}
	server := newTestServer(t, serverResp)
	defer server.Close()

	client, err := NewSpacyClient(
		WithBaseURL(server.URL),
		WithModel(ModelEnCoreWebSm),
	)
	require.NoError(t, err)

	text := "William Christy wrote a letter from Cheshire."
	annotation, err := client.Annotate(context.Background(), text, WithTitle("Letter 42"))
	require.NoError(t, err)
	require.NotNil(t, annotation)

	assert.Equal(t, text, annotation.Text)
	assert.Equal(t, ModelEnCoreWebSm, annotation.Model)
	assert.Equal(t, "Letter 42", annotation.Title)
	require.Len(t, annotation.Ents, 2)
	assert.Equal(t, LabelPerson, annotation.Ents[0].Label)
	assert.Equal(t, LabelGpe, annotation.Ents[1].Label)

	// 实体原文按偏移补全
	assert.Equal(t, "William Christy", annotation.Ents[0].Text)
	assert.Equal(t, "Cheshire", annotation.Ents[1].Text)
}

func TestSpacyClientAnnotateEmptyText(t *testing.T) {
	client, err := NewSpacyClient(WithBaseURL("http://localhost:1"))
	require.NoError(t, err)

	_, err = client.Annotate(context.Background(), "")
	require.Error(t, err)

	nerErr, ok := err.(NERError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeEmptyText, nerErr.Code)
}

func TestSpacyClientServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "E001",
			"message": "model failed to load",
		})
	}))
	defer server.Close()

	client, err := NewSpacyClient(
		WithBaseURL(server.URL),
		WithMaxRetries(2),
	)
	require.NoError(t, err)

	_, err = client.Annotate(context.Background(), "some text")
	require.Error(t, err)

	nerErr, ok := err.(NERError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeServerError, nerErr.Code)
	assert.Contains(t, nerErr.Message, "model failed to load")

	// 5xx错误应当触发重试
	assert.Equal(t, 3, attempts)
}

func TestSpacyClientModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "E404",
			"message": "model not installed",
		})
	}))
	defer server.Close()

	client, err := NewSpacyClient(
		WithBaseURL(server.URL),
		WithModel("xx_missing_model"),
	)
	require.NoError(t, err)

	_, err = client.Annotate(context.Background(), "some text")
	require.Error(t, err)

	nerErr, ok := err.(NERError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeModelNotFound, nerErr.Code)
}

func TestSpacyClientDisabledComponents(t *testing.T) {
	var gotDisable []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SpacyRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotDisable = req.Disable

		json.NewEncoder(w).Encode(&SpacyResponse{Text: req.Text, Ents: []EntitySpan{}})
	}))
	defer server.Close()

	client, err := NewSpacyClient(
		WithBaseURL(server.URL),
		WithDisabledComponents("tagger", "parser"),
	)
	require.NoError(t, err)

	_, err = client.Annotate(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []string{"tagger", "parser"}, gotDisable)

	// 请求级选项覆盖客户端默认配置
	_, err = client.Annotate(context.Background(), "some text", WithDisable("parser"))
	require.NoError(t, err)
	assert.Equal(t, []string{"parser"}, gotDisable)
}

func TestSpacyClientMeta(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models/en_core_web_sm/meta", r.URL.Path)

		json.NewEncoder(w).Encode(&ModelMeta{
			Name:     ModelEnCoreWebSm,
			Lang:     "en",
			Version:  "3.7.1",
			Pipeline: []string{"tok2vec", "tagger", "parser", "ner"},
			Labels:   Labels(),
		})
	}))
	defer server.Close()

	client, err := NewSpacyClient(WithBaseURL(server.URL))
	require.NoError(t, err)

	meta, err := client.Meta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModelEnCoreWebSm, meta.Name)
	assert.Equal(t, "en", meta.Lang)
	assert.Contains(t, meta.Pipeline, "ner")
	assert.Contains(t, meta.Labels, LabelPerson)
}

func TestSpacyClientContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client, err := NewSpacyClient(
		WithBaseURL(server.URL),
		WithTimeout(5*time.Second),
		WithMaxRetries(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = client.Annotate(ctx, "some text")
	require.Error(t, err)
}

func TestClientRegistry(t *testing.T) {
	// spacy客户端在init中注册
	client, err := NewClient("spacy", WithModel(ModelEnCoreWebMd))
	require.NoError(t, err)
	assert.Equal(t, ModelEnCoreWebMd, client.Model())

	// 未注册的客户端类型
	_, err = NewClient("nonexistent")
	require.Error(t, err)
	nerErr, ok := err.(NERError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidRequest, nerErr.Code)
}

func TestAnnotationSpanText(t *testing.T) {
	// 字符偏移而非字节偏移
	annotation := &Annotation{
		Text: "café in Zürich",
		Ents: []EntitySpan{
			{Start: 8, End: 14, Label: LabelGpe},
		},
	}

	assert.Equal(t, "Zürich", annotation.SpanText(annotation.Ents[0]))

	// 越界span返回空字符串
	assert.Equal(t, "", annotation.SpanText(EntitySpan{Start: 10, End: 100}))
	assert.Equal(t, "", annotation.SpanText(EntitySpan{Start: -1, End: 3}))
}

func TestExplain(t *testing.T) {
	assert.Equal(t, "People, including fictional", Explain(LabelPerson))
	assert.Equal(t, "Countries, cities, states", Explain(LabelGpe))
	assert.Equal(t, "", Explain("UNKNOWN_LABEL"))

	assert.Len(t, Labels(), 18)
}
