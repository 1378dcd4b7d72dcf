package rollup

type ForkName string

const (
	Bedrock  ForkName = "bedrock"
	Regolith ForkName = "regolith"
	Canyon   ForkName = "canyon"
	Delta    ForkName = "delta"
	Ecotone  ForkName = "ecotone"
	Fjord    ForkName = "fjord"
	Granite  ForkName = "granite"
	Interop  ForkName = "interop"
	None     ForkName = ""
)

// ForksInOrder lists all the scheduled network upgrades, oldest first.
var ForksInOrder = []ForkName{Bedrock, Regolith, Canyon, Delta, Ecotone, Fjord, Granite, Interop}
