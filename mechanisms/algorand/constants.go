package algorand

const (
	// PayCheckoutSignature is the checkout program method invoked by the payment group.
	PayCheckoutSignature = "payCheckout(axfer,string,address,string,uint64,string)void"

	// SelectorLength is the number of hash bytes that identify a method.
	SelectorLength = 4

	// MaxStringLength is the largest string a 2-byte length prefix can describe.
	MaxStringLength = 65535

	AddressLength = 32

	// InvocationFeeMultiplier covers the program call plus the pooled transfer fee.
	InvocationFeeMultiplier = 2

	// MaxAppArgs and MaxAppArgsTotalLength are the ledger limits for application call arguments.
	MaxAppArgs            = 16
	MaxAppArgsTotalLength = 2048

	// MaxNoteLength is the ledger limit for a transaction note.
	MaxNoteLength = 1024

	// DirectNotePrefix marks direct transfers so the merchant can match them to a checkout.
	DirectNotePrefix = "checkout:"

	// DefaultAssetDecimals is used when an asset's precision is unknown (USDC and most stablecoins).
	DefaultAssetDecimals = 6

	// AlgoDecimals is the precision of the native asset.
	AlgoDecimals = 6
)
