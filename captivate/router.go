// ABOUTME: Router-mode capability gate for multi-agent escalation bookkeeping
// ABOUTME: A per-instance gate, not a separate object; gated operations fail when the mode is off

package captivate

import "slices"

// EnableRouterMode turns on the router-mode capability set.
func (c *Controller) EnableRouterMode() {
	c.routerMode = true
}

// DisableRouterMode turns off the router-mode capability set. The
// agents-list one-shot guard is not reset.
func (c *Controller) DisableRouterMode() {
	c.routerMode = false
}

// RouterModeEnabled reports whether router mode is on.
func (c *Controller) RouterModeEnabled() bool {
	return c.routerMode
}

// SetAgentsList records the candidate agents exactly once. Fails with
// ErrRouterModeDisabled outside router mode and ErrAgentsAlreadySet on a
// second call.
func (c *Controller) SetAgentsList(agents []string) error {
	if !c.routerMode {
		return ErrRouterModeDisabled
	}
	if c.agentsListSet {
		return ErrAgentsAlreadySet
	}
	c.agentsList = slices.Clone(agents)
	c.agentsListSet = true
	return nil
}

// AgentsList returns the recorded candidate agents. Requires router mode.
func (c *Controller) AgentsList() ([]string, error) {
	if !c.routerMode {
		return nil, ErrRouterModeDisabled
	}
	return slices.Clone(c.agentsList), nil
}

// OutgoingActions returns the response's outgoing actions. Requires
// router mode.
func (c *Controller) OutgoingActions() ([]*Action, error) {
	if !c.routerMode {
		return nil, ErrRouterModeDisabled
	}
	return c.response.OutgoingActions(), nil
}

// IsEscalatingToAgentRouter reports whether the response escalates to the
// agent router. Requires router mode.
func (c *Controller) IsEscalatingToAgentRouter() (bool, error) {
	if !c.routerMode {
		return false, ErrRouterModeDisabled
	}
	for _, a := range c.response.OutgoingActions() {
		if a.ID() == ActionEscalateToAgentRouter {
			return true, nil
		}
	}
	return false, nil
}
