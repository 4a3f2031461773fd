package registry

import (
	"encoding/json"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

const defaultCacheSize = 256

// listingCache memoizes parsed suite trees per interface, parameter and file.
type listingCache struct {
	lru *lru.Cache
}

func newListingCache(size int) (*listingCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &listingCache{lru: c}, nil
}

func cacheKey(iface string, param json.RawMessage, file string) string {
	key, _ := json.Marshal([]string{iface, string(param), file})
	return string(key)
}

func (c *listingCache) get(key string) (*types.SuiteNode, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*types.SuiteNode), true
}

func (c *listingCache) add(key string, tree *types.SuiteNode) {
	c.lru.Add(key, tree)
}

func (c *listingCache) purge() {
	c.lru.Purge()
}
