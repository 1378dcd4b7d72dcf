package params

// Protocol constants that replaced rollup config values in network upgrades.
const (
	// ChannelTimeoutGranite is the channel timeout, in L1 blocks, from Granite on.
	ChannelTimeoutGranite uint64 = 50
	// MessageExpiryTimeSecondsInterop is the default age, in seconds, after which an initiating
	// message can no longer be executed.
	MessageExpiryTimeSecondsInterop = 604800
)
