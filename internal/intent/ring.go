package intent

import "encoding/json"

// SignalCapacity is the number of recent signals retained per topic.
const SignalCapacity = 10

// SignalLog holds the most recent SignalCapacity signals in arrival
// order. Appending beyond capacity overwrites the oldest entry.
type SignalLog struct {
	entries [SignalCapacity]IntentSignal
	next    int
	filled  bool
}

func (l *SignalLog) Append(sig IntentSignal) {
	l.entries[l.next] = sig
	l.next++
	if l.next >= len(l.entries) {
		l.next = 0
		l.filled = true
	}
}

func (l SignalLog) Len() int {
	if l.filled {
		return len(l.entries)
	}
	return l.next
}

// All returns the retained signals oldest first.
func (l SignalLog) All() []IntentSignal {
	n := l.Len()
	if n == 0 {
		return nil
	}
	start := 0
	if l.filled {
		start = l.next
	}
	out := make([]IntentSignal, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.entries[(start+i)%len(l.entries)])
	}
	return out
}

// Recent returns up to limit retained signals newest first.
func (l SignalLog) Recent(limit int) []IntentSignal {
	all := l.All()
	if len(all) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]IntentSignal, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out
}

func (l SignalLog) Last() (IntentSignal, bool) {
	if l.Len() == 0 {
		return IntentSignal{}, false
	}
	idx := l.next - 1
	if idx < 0 {
		idx = len(l.entries) - 1
	}
	return l.entries[idx], true
}

func (l SignalLog) MarshalJSON() ([]byte, error) {
	all := l.All()
	if all == nil {
		all = []IntentSignal{}
	}
	return json.Marshal(all)
}

func (l *SignalLog) UnmarshalJSON(data []byte) error {
	var sigs []IntentSignal
	if err := json.Unmarshal(data, &sigs); err != nil {
		return err
	}
	*l = SignalLog{}
	for _, sig := range sigs {
		l.Append(sig)
	}
	return nil
}
