package seckill

import "errors"

// Admission outcomes surfaced synchronously to the caller. The reason must
// let a user tell "no stock" from "already purchased" from "system busy".
var (
	ErrOutOfStock     = errors.New("seckill: out of stock")
	ErrDuplicateOrder = errors.New("seckill: user already ordered this voucher")
	ErrNotStarted     = errors.New("seckill: sale has not started")
	ErrEnded          = errors.New("seckill: sale has ended")
)
