package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const orderbookABIJSON = `[
  {"type":"function","name":"getAllOrders","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"rate","type":"uint256"},
     {"name":"amount","type":"uint256"},
     {"name":"pool","type":"address"},
     {"name":"poolId","type":"uint256"},
     {"name":"utilization","type":"uint256"}]}]},
  {"type":"function","name":"getBorrowerPositions","stateMutability":"view",
   "inputs":[{"name":"borrower","type":"address"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"pool","type":"address"},
     {"name":"poolId","type":"uint256"},
     {"name":"amount","type":"uint256"},
     {"name":"timestamp","type":"uint256"}]}]},
  {"type":"function","name":"getActualDebt","stateMutability":"view",
   "inputs":[{"name":"borrower","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"matchBorrowOrder","stateMutability":"nonpayable",
   "inputs":[{"name":"borrower","type":"address"},{"name":"borrowAmount","type":"uint256"},
             {"name":"maxRate","type":"uint256"},{"name":"collateralAmount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"fulfillRepay","stateMutability":"nonpayable",
   "inputs":[{"name":"borrower","type":"address"},{"name":"repayAmount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"requote","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"symbol","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"string"}]}
]`

const poolABIJSON = `[
  {"type":"function","name":"supply","stateMutability":"nonpayable",
   "inputs":[{"name":"amount","type":"uint256"},{"name":"minShares","type":"uint256"},
             {"name":"onBehalfOf","type":"address"},{"name":"data","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable",
   "inputs":[{"name":"shares","type":"uint256"},{"name":"onBehalfOf","type":"address"},
             {"name":"receiver","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const oracleABIJSON = `[
  {"type":"function","name":"updatePrice","stateMutability":"payable",
   "inputs":[{"name":"priceUpdate","type":"bytes[]"}],"outputs":[]},
  {"type":"function","name":"price","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getLatestPrice","stateMutability":"view","inputs":[],
   "outputs":[{"name":"price","type":"int64"},{"name":"publishTime","type":"uint64"}]}
]`

var (
	orderbookABI = mustParseABI(orderbookABIJSON)
	erc20ABI     = mustParseABI(erc20ABIJSON)
	poolABI      = mustParseABI(poolABIJSON)
	oracleABI    = mustParseABI(oracleABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid abi: " + err.Error())
	}
	return parsed
}
