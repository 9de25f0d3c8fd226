package state

import (
	"encoding/binary"
	"strings"
)

var (
	tokenPrefix            = []byte("token:")
	tokenListKeyBytes      = []byte("token-list")
	balancePrefix          = []byte("balance:")
	allowancePrefix        = []byte("allowance:")
	supplyPrefix           = []byte("supply:")
	rolePrefix             = []byte("role:")
	ammPairPrefix          = []byte("amm/pair/")
	metaPrefix             = []byte("meta/")
	stakingRegistryKey     = []byte("staking/registry")
	stakingPoolPrefix      = []byte("staking/pool/")
	stakingPoolTokenPrefix = []byte("staking/pool-token/")
	stakingAccountPrefix   = []byte("staking/account/")
	stakingPoolUserPrefix  = []byte("staking/pool-user/")
	stakingBindingPrefix   = []byte("staking/referral/binding/")
	stakingReferralPrefix  = []byte("staking/referral/ledger/")
	stakingRefereePrefix   = []byte("staking/referral/referee/")
	stakingBlacklistPrefix = []byte("staking/blacklist/")
)

// compose joins a prefix with the supplied parts, separated by ':'.
func compose(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, p...)
	}
	return buf
}

func symbolBytes(symbol string) []byte {
	return []byte(strings.ToUpper(strings.TrimSpace(symbol)))
}

func u32(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf[:]
}

func u64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
