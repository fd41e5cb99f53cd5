package redisx

import "time"

const (
	// Cached seckill stock counter: seckill:stock:{voucher_id} -> remaining units
	KeySeckillStock = "seckill:stock:%d"

	// Users already admitted for a voucher: seckill:buyers:{voucher_id} (set of user ids)
	KeySeckillBuyers = "seckill:buyers:%d"

	// Daily id counter: icr:{tag}:{yyyy:MM:dd} -> INCR sequence
	KeyIDCounter = "icr:%s:%s"

	// Per-user order creation lock: lock:order:{user_id}
	KeyLockOrder = "lock:order:%d"

	// Cache rebuild lock: lock:shop:{shop_id}
	KeyLockShop = "lock:shop:%d"

	// Logical-expire cache entry: cache:shop:{shop_id} -> {"data":...,"expireAt":...}
	KeyCacheShop = "cache:shop:%d"

	// Pass-through cache entry: cache:voucher:{voucher_id} -> voucher json or ""
	KeyCacheVoucher = "cache:voucher:%d"

	// Pass-through rebuild lock: lock:voucher:{voucher_id}
	KeyLockVoucher = "lock:voucher:%d"

	// Default order stream + consumer group (per-instance consumer name is config)
	StreamOrders = "stream.orders"
	GroupOrders  = "g1"
)

var (
	TTLCacheVoucher = 10 * time.Minute
	TTLCacheNull    = 2 * time.Minute
	TTLLockOrder    = 10 * time.Second
	TTLLockRebuild  = 10 * time.Second
)
