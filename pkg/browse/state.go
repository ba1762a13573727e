package browse

// State is the browse position of one view: where it is and what is selected.
//
// Every navigation transition clears the selection, including one that lands
// on the prefix already displayed.
type State struct {
	History   History
	Selection Selection
}

// NewState starts a view at initial with an empty selection.
func NewState(initial Prefix) State {
	return State{History: NewHistory(initial)}
}

// Current returns the displayed prefix.
func (s State) Current() Prefix {
	return s.History.Current()
}

// Navigate records p in history and clears the selection.
func (s State) Navigate(p Prefix) State {
	return State{History: s.History.Goto(p)}
}

// NavigateIndex jumps to breadcrumb i and clears the selection.
func (s State) NavigateIndex(i int) (State, error) {
	h, err := s.History.GotoIndex(i)
	if err != nil {
		return s, err
	}
	return State{History: h}, nil
}

// Back steps one history entry back.
func (s State) Back() State {
	return State{History: s.History.Back()}
}

// Forward steps one history entry forward.
func (s State) Forward() State {
	return State{History: s.History.Forward()}
}

// Home returns to the bucket root.
func (s State) Home() State {
	return State{History: s.History.Home()}
}

// WithSelection replaces the selection.
func (s State) WithSelection(sel Selection) State {
	return State{History: s.History, Selection: sel}
}
