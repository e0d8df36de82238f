// Package redis implements store.Store on Redis. Members are stored as
// Redis Hashes indexed by a Set; named locks are keys taken with SET NX PX
// and released only by the holder's token.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
