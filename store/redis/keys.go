package redis

// Redis key naming conventions. All keys carry the store's prefix,
// "distask:" unless configured otherwise.

// memberKey returns the key for a member entity: {prefix}member:{address}
func (s *Store) memberKey(address string) string { return s.prefix + "member:" + address }

// membersKey is the Set tracking all member addresses for enumeration.
func (s *Store) membersKey() string { return s.prefix + "members" }

// lockKey returns the key for a named lock: {prefix}lock:{name}
func (s *Store) lockKey(name string) string { return s.prefix + "lock:" + name }
