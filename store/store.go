// Package store 提供 core.Store / core.KeyValueStore 的实现。
//
// 接口定义在 core 包：
//
//	var kv core.KeyValueStore = store.NewMemoryStore()
//	var kv core.KeyValueStore = store.NewRedisStore(store.RedisOptions{Addr: "localhost:6379"})
package store
