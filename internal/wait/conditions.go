package wait

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/stepwise/internal/locator"
	"github.com/xkilldash9x/stepwise/internal/search"
	"github.com/xkilldash9x/stepwise/internal/webdriver"
)

// PresenceOf passes with the match set once loc resolves to at least one
// element. The locator's own visibility parameter applies.
func PresenceOf(engine *search.Engine, loc locator.Locator) Condition[search.Result] {
	return NewCondition("presence of element with search attributes:"+loc.String(),
		func(ctx context.Context, sc webdriver.SearchContext) (search.Result, error) {
			res, err := engine.FindElements(ctx, sc, loc)
			if err != nil || res.Len() == 0 {
				return nil, err
			}
			return res, nil
		})
}

// VisibilityOf passes once loc resolves to at least one displayed element.
func VisibilityOf(engine *search.Engine, loc locator.Locator) Condition[search.Result] {
	visible, err := loc.With(locator.WithVisibility(locator.Visible))
	if err != nil {
		visible = loc
	}
	return NewCondition("visibility of element with search attributes:"+visible.String(),
		func(ctx context.Context, sc webdriver.SearchContext) (search.Result, error) {
			res, err := engine.FindElements(ctx, sc, visible)
			if err != nil || res.Len() == 0 {
				return nil, err
			}
			return res, nil
		})
}

// InvisibilityOf passes once no element matched by loc is displayed. Elements
// that go stale while being checked count as invisible.
func InvisibilityOf(engine *search.Engine, loc locator.Locator) Condition[bool] {
	all, err := loc.With(locator.WithVisibility(locator.All))
	if err != nil {
		all = loc
	}
	return NewCondition("invisibility of element with search attributes:"+all.String(),
		func(ctx context.Context, sc webdriver.SearchContext) (bool, error) {
			res, err := engine.FindElements(ctx, sc, all)
			if err != nil {
				return false, err
			}
			for _, el := range res {
				shown, err := el.IsDisplayed(ctx)
				if errors.Is(err, webdriver.ErrStaleElement) {
					continue
				}
				if err != nil {
					return false, err
				}
				if shown {
					return false, nil
				}
			}
			return true, nil
		})
}

// NumberOfElementsToBe passes once loc resolves to exactly n elements.
func NumberOfElementsToBe(engine *search.Engine, loc locator.Locator, n int) Condition[bool] {
	return NewCondition(fmt.Sprintf("number of elements with search attributes:%s to be %d", loc, n),
		func(ctx context.Context, sc webdriver.SearchContext) (bool, error) {
			res, err := engine.FindElements(ctx, sc, loc)
			if err != nil {
				return false, err
			}
			return res.Len() == n, nil
		})
}

// ElementToBeClickable passes with el once it is displayed and enabled.
func ElementToBeClickable(el webdriver.Element) Condition[webdriver.Element] {
	return NewCondition("element to be clickable: "+el.ID(),
		func(ctx context.Context, _ webdriver.SearchContext) (webdriver.Element, error) {
			shown, err := el.IsDisplayed(ctx)
			if err != nil || !shown {
				return nil, err
			}
			enabled, err := el.IsEnabled(ctx)
			if err != nil || !enabled {
				return nil, err
			}
			return el, nil
		})
}

// StalenessOf passes once el no longer refers to a live node.
func StalenessOf(el webdriver.Element) Condition[bool] {
	return NewCondition("staleness of element: "+el.ID(),
		func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
			_, err := el.IsEnabled(ctx)
			if errors.Is(err, webdriver.ErrStaleElement) {
				return true, nil
			}
			return false, err
		})
}

// TextToBePresentInElement passes once el's text contains text.
func TextToBePresentInElement(el webdriver.Element, text string) Condition[bool] {
	return NewCondition(fmt.Sprintf("text ('%s') to be present in element: %s", text, el.ID()),
		func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
			got, err := el.Text(ctx)
			if err != nil {
				return false, err
			}
			return strings.Contains(got, text), nil
		})
}

// AttributeToBe passes once el's attribute name equals value.
func AttributeToBe(el webdriver.Element, name, value string) Condition[bool] {
	return NewCondition(fmt.Sprintf("attribute '%s' of element %s to be '%s'", name, el.ID(), value),
		func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
			got, err := el.GetAttribute(ctx, name)
			if err != nil {
				return false, err
			}
			return got == value, nil
		})
}

// AlertIsPresent passes once a native dialog is open. "No alert" and "no such
// window" are both a plain false.
func AlertIsPresent(alerts webdriver.AlertHandler) Condition[bool] {
	return NewCondition("alert to be present",
		func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
			_, err := alerts.AlertText(ctx)
			switch {
			case err == nil:
				return true, nil
			case errors.Is(err, webdriver.ErrNoAlert), errors.Is(err, webdriver.ErrNoSuchWindow):
				return false, nil
			}
			return false, err
		})
}

// DocumentReady passes once document.readyState is "complete".
func DocumentReady(exec webdriver.ScriptExecutor) Condition[bool] {
	return NewCondition("document ready state to be complete",
		func(ctx context.Context, _ webdriver.SearchContext) (bool, error) {
			state, err := exec.ExecuteScript(ctx, webdriver.ScriptReadyState)
			if err != nil {
				return false, err
			}
			s, _ := state.(string)
			return s == "complete", nil
		})
}

// Not inverts cond. A transient error from cond counts as "not present".
func Not[T any](cond Condition[T]) Condition[bool] {
	return NewCondition("condition to not be valid: "+cond.String(),
		func(ctx context.Context, sc webdriver.SearchContext) (bool, error) {
			v, err := cond.Evaluate(ctx, sc)
			if err != nil {
				if webdriver.IsTransient(err) {
					return true, nil
				}
				return false, err
			}
			return !Truthy(v), nil
		})
}

// Or passes as soon as any of conds passes, evaluating them in order.
func Or(conds ...Condition[bool]) Condition[bool] {
	descs := make([]string, len(conds))
	for i, c := range conds {
		descs[i] = c.String()
	}
	return NewCondition("at least one condition to be valid: "+strings.Join(descs, " || "),
		func(ctx context.Context, sc webdriver.SearchContext) (bool, error) {
			var lastErr error
			for _, c := range conds {
				ok, err := c.Evaluate(ctx, sc)
				if err != nil {
					if !webdriver.IsTransient(err) {
						return false, err
					}
					lastErr = err
					continue
				}
				if ok {
					return true, nil
				}
			}
			return false, lastErr
		})
}
