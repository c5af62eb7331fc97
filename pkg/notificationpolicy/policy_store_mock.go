package notificationpolicy

var _ PolicyStore = (*PolicyStoreMock)(nil)

type PolicyStoreMock struct {
	MemtagSuppressed map[string]bool
	Err              error
}

func (p *PolicyStoreMock) IsMemtagNotificationSuppressed(packageName string) (bool, error) {
	if p.Err != nil {
		return false, p.Err
	}
	return p.MemtagSuppressed[packageName], nil
}
