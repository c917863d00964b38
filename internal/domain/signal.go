package domain

// Signal is the classification produced for an instrument on one run.
type Signal int

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
	SignalInfo
	SignalAlert
)

// signal string constants to avoid magic strings
const (
	signalStringHold  = "HOLD"
	signalStringBuy   = "BUY"
	signalStringSell  = "SELL"
	signalStringInfo  = "INFO"
	signalStringAlert = "ALERT"
)

// String returns the string representation of the signal.
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return signalStringBuy
	case SignalSell:
		return signalStringSell
	case SignalInfo:
		return signalStringInfo
	case SignalAlert:
		return signalStringAlert
	default:
		return signalStringHold
	}
}

// Icon returns the emoji used for the signal in rendered reports.
func (s Signal) Icon() string {
	switch s {
	case SignalBuy:
		return "🟢"
	case SignalSell:
		return "🔴"
	case SignalAlert:
		return "🚨"
	case SignalInfo:
		return "🔵"
	default:
		return "🟡"
	}
}
