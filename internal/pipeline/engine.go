package pipeline

import (
	"context"
	"errors"

	"admatch/internal/diag"
	"admatch/internal/memo"
	"admatch/pkg/contract"
)

// Engine 为展示层协作者提供的计算入口：提取+索引、展开、匹配。
// 提取与展开按输入字节摘要记忆化；相同字节直接命中，Reset 强制重算。
// 返回值在缓存中共享，调用方只读。
type Engine struct {
	extractor contract.Extractor
	indexer   contract.Indexer
	expander  contract.Expander
	matcher   contract.Matcher
	cache     *memo.Cache
	variant   string
	logger    *diag.Logger
}

// NewEngine 组装引擎；cache 为 nil 时使用默认容量新建。
// variant 为组件选项指纹，参与缓存键（选项变化即不命中）。
func NewEngine(c Components, cache *memo.Cache, variant string, logger *diag.Logger) (*Engine, error) {
	if c.Extractor == nil || c.Indexer == nil || c.Expander == nil || c.Matcher == nil {
		return nil, errors.New("pipeline: engine missing components")
	}
	if cache == nil {
		var err error
		if cache, err = memo.New(nil); err != nil {
			return nil, err
		}
	}
	return &Engine{
		extractor: c.Extractor,
		indexer:   c.Indexer,
		expander:  c.Expander,
		matcher:   c.Matcher,
		cache:     cache,
		variant:   variant,
		logger:    logger,
	}, nil
}

// Extract 打开主文档并建立广告码索引。
// 容器无法打开返回 *contract.ExtractionError；错误不缓存。
func (e *Engine) Extract(ctx context.Context, data []byte, kind contract.DocKind) (contract.Catalog, error) {
	cat, hit, err := memo.Do(e.cache, "extract", e.variant+"|"+string(kind), data, func() (contract.Catalog, error) {
		t := e.logger.StartWithKV("extractor", "extract document", "", map[string]string{"kind": string(kind)})
		blocks, err := e.extractor.Extract(ctx, data, kind)
		if err != nil {
			return contract.Catalog{}, e.fail("extractor", t, err)
		}
		e.done("extractor", t, "blocks extracted", len(blocks))

		t = e.logger.Start("indexer", "index ad codes")
		cat, err := e.indexer.Index(ctx, blocks)
		if err != nil {
			return contract.Catalog{}, e.fail("indexer", t, err)
		}
		e.done("indexer", t, "codes indexed", len(cat.Codes))
		return cat, nil
	})
	if hit {
		e.logger.DebugStart("extractor", "cache hit", "", map[string]string{"kind": string(kind)})
	}
	return cat, err
}

// Expand 展开上传项；键为有序的（名字，内容摘要）列表。素材字节登记到 Blobs 缓存。
func (e *Engine) Expand(ctx context.Context, uploads []contract.Upload) (contract.Expansion, error) {
	parts := make([]string, 0, 2*len(uploads))
	for _, u := range uploads {
		parts = append(parts, u.Name, memo.Digest(u.Data))
	}
	exp, hit, err := memo.DoKey(e.cache, memo.Key("expand", e.variant, parts...), func() (contract.Expansion, error) {
		t := e.logger.StartWithKV("expander", "expand uploads", "", map[string]string{"uploads": itoa(len(uploads))})
		exp, err := e.expander.Expand(ctx, uploads)
		if err != nil {
			return contract.Expansion{}, e.fail("expander", t, err)
		}
		for i := range exp.Assets {
			_, exp.Assets[i].Data = e.cache.Intern(exp.Assets[i].Data)
		}
		e.done("expander", t, "assets expanded", len(exp.Assets))
		return exp, nil
	})
	if hit {
		e.logger.DebugStart("expander", "cache hit", "", nil)
	}
	return exp, err
}

// Match 为每个码挑选素材（不记忆化，结果引用当次素材）。
func (e *Engine) Match(ctx context.Context, codes []contract.AdCode, assets []contract.Asset) (contract.AssetIndex, error) {
	t := e.logger.StartWithKV("matcher", "match assets", "", map[string]string{"codes": itoa(len(codes)), "assets": itoa(len(assets))})
	ix, err := e.matcher.Match(ctx, codes, assets)
	if err != nil {
		return nil, e.fail("matcher", t, err)
	}
	e.done("matcher", t, "codes matched", len(ix))
	return ix, nil
}

// Reset 清空全部缓存，下一次调用完整重算。
func (e *Engine) Reset() {
	e.cache.ClearAll()
	e.logger.DebugStart("engine", "caches cleared", "", nil)
}

func (e *Engine) fail(comp string, t *diag.Timer, err error) error {
	code := diag.Report(comp, err)
	e.logger.ErrorWith(comp, string(code), err.Error(), t.Since(), "")
	return err
}

func (e *Engine) done(comp string, t *diag.Timer, msg string, n int) {
	diag.IncOp(comp, "finish", "success")
	t.Finish(msg, int64(n))
}
