package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// consumerABI is the interface of the randomness consumer contract. Records
// are keyed by entity hash; the VRF coordinator callback fills in randomness.
const consumerABI = `[
	{"type":"function","name":"submit","stateMutability":"nonpayable",
	 "inputs":[{"name":"entityHash","type":"bytes32"},{"name":"saltDigest","type":"bytes32"}],
	 "outputs":[{"name":"requestId","type":"uint256"}]},
	{"type":"function","name":"isCommitted","stateMutability":"view",
	 "inputs":[{"name":"entityHash","type":"bytes32"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getRandomness","stateMutability":"view",
	 "inputs":[{"name":"entityHash","type":"bytes32"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getRecord","stateMutability":"view",
	 "inputs":[{"name":"entityHash","type":"bytes32"}],
	 "outputs":[
		{"name":"requestId","type":"uint256"},
		{"name":"saltDigest","type":"bytes32"},
		{"name":"requester","type":"address"},
		{"name":"randomness","type":"uint256"},
		{"name":"fulfilled","type":"bool"}]},
	{"type":"event","name":"RandomnessRequested","anonymous":false,
	 "inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"entityHash","type":"bytes32","indexed":true},
		{"name":"requester","type":"address","indexed":false}]},
	{"type":"event","name":"RandomnessFulfilled","anonymous":false,
	 "inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"entityHash","type":"bytes32","indexed":true},
		{"name":"randomness","type":"uint256","indexed":false}]},
	{"type":"error","name":"DuplicateEntity",
	 "inputs":[{"name":"entityHash","type":"bytes32"}]}
]`

var parsedABI = mustParseABI(consumerABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("parse consumer ABI: " + err.Error())
	}
	return parsed
}

// ABI returns the consumer contract ABI.
func ABI() abi.ABI {
	return parsedABI
}
