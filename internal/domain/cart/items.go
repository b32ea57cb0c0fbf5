package cart

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"

	"github.com/xenking/kart-pricing/internal/domain/tax"
	"github.com/xenking/kart-pricing/internal/money"
)

// MaxBundleDepth bounds how deeply items may nest under a root item.
const MaxBundleDepth = 32

// AddItem adds a root item to the cart.
func (c *Cart) AddItem(spec ItemSpec) (ItemID, error) {
	it, err := c.newItem(spec)
	if err != nil {
		return 0, err
	}
	c.items[it.id] = it
	c.roots = append(c.roots, it.id)
	c.itemAdded(it)
	return it.id, nil
}

// AddChild adds an item under parent: a constituent when parent is a bundle,
// a dependent item otherwise.
func (c *Cart) AddChild(parent ItemID, spec ItemSpec) (ItemID, error) {
	p, ok := c.items[parent]
	if !ok {
		return 0, errors.Wrapf(ErrItemNotFound, "parent %d", parent)
	}
	it, err := c.newItem(spec)
	if err != nil {
		return 0, err
	}
	it.parent = parent
	c.items[it.id] = it
	p.children = append(p.children, it.id)
	c.itemAdded(it)
	return it.id, nil
}

func (c *Cart) newItem(spec ItemSpec) (*Item, error) {
	if spec.Quantity <= 0 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "sku %q: %d", spec.SKUCode, spec.Quantity)
	}
	if spec.Currency != (currency.Unit{}) && spec.Currency != c.currency {
		return nil, errors.Wrapf(ErrCurrencyMismatch, "sku %q: %s, cart is %s", spec.SKUCode, spec.Currency, c.currency)
	}
	if err := spec.Prices.validate(); err != nil {
		return nil, errors.Wrapf(err, "sku %q", spec.SKUCode)
	}
	sku, ok := c.skus.SKU(spec.SKUCode)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSKU, "%q", spec.SKUCode)
	}
	guid := spec.GUID
	if guid == "" {
		guid = uuid.NewString()
	}
	c.nextID++
	return &Item{
		id:           c.nextID,
		guid:         guid,
		sku:          sku,
		quantity:     spec.Quantity,
		taxInclusive: c.taxInclusive,
		tax:          c.taxResult.ItemTax(guid),
		prices:       spec.Prices,
		currency:     c.currency,
	}, nil
}

func (c *Cart) itemAdded(it *Item) {
	delete(c.removedSKUs, it.sku.Code)
	c.estimateMode = false
	c.lg.Debug("Item added",
		zap.Int64("item_id", int64(it.id)),
		zap.String("sku", it.sku.Code),
		zap.Int("quantity", it.quantity),
	)
}

// RemoveItem removes an item and everything nested under it. The item's SKU
// is remembered as manually removed.
func (c *Cart) RemoveItem(id ItemID) error {
	it, ok := c.items[id]
	if !ok {
		return errors.Wrapf(ErrItemNotFound, "item %d", id)
	}
	if parentID, ok := it.Parent(); ok {
		if p, ok := c.items[parentID]; ok {
			p.children = slices.DeleteFunc(p.children, func(child ItemID) bool { return child == id })
		}
	} else {
		c.roots = slices.DeleteFunc(c.roots, func(root ItemID) bool { return root == id })
	}
	c.removeTree(id, 0)
	c.removedSKUs[it.sku.Code] = struct{}{}
	c.estimateMode = false
	return nil
}

func (c *Cart) removeTree(id ItemID, depth int) {
	it, ok := c.items[id]
	if !ok || depth > MaxBundleDepth {
		return
	}
	delete(c.items, id)
	for _, child := range it.children {
		c.removeTree(child, depth+1)
	}
}

// Item returns the item with the given id.
func (c *Cart) Item(id ItemID) (*Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// ItemByGUID returns the item with the given GUID.
func (c *Cart) ItemByGUID(guid string) (*Item, bool) {
	for _, it := range c.items {
		if it.guid == guid {
			return it, true
		}
	}
	return nil, false
}

// RootItems returns the top level items in insertion order.
func (c *Cart) RootItems() []*Item {
	out := make([]*Item, 0, len(c.roots))
	for _, id := range c.roots {
		out = append(out, c.items[id])
	}
	return out
}

// Children returns the items directly under id.
func (c *Cart) Children(id ItemID) ([]*Item, error) {
	it, ok := c.items[id]
	if !ok {
		return nil, errors.Wrapf(ErrItemNotFound, "item %d", id)
	}
	out := make([]*Item, 0, len(it.children))
	for _, child := range it.children {
		out = append(out, c.items[child])
	}
	return out, nil
}

// IsCartItemRemoved reports whether an item with the SKU was removed from
// the cart and not added back since.
func (c *Cart) IsCartItemRemoved(skuCode string) bool {
	_, ok := c.removedSKUs[skuCode]
	return ok
}

// NumItems returns the total quantity of the root items.
func (c *Cart) NumItems() int {
	var n int
	for _, id := range c.roots {
		n += c.items[id].quantity
	}
	return n
}

// RequiresShipping reports whether any priced leaf item is shippable.
func (c *Cart) RequiresShipping() (bool, error) {
	leaves, err := c.leaves()
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(leaves, (*Item).IsShippable), nil
}

// TotalWeight returns the weight of all shippable leaf items.
func (c *Cart) TotalWeight() (decimal.Decimal, error) {
	leaves, err := c.leaves()
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, it := range leaves {
		if it.IsShippable() {
			total = total.Add(it.sku.Weight.Mul(decimal.NewFromInt(int64(it.quantity))))
		}
	}
	return total, nil
}

// ClearItems empties the cart of items and of everything that depends on
// them: promotion codes, discount records, gift certificates, shipping
// pricing and taxes.
func (c *Cart) ClearItems() {
	clear(c.items)
	c.roots = c.roots[:0]
	clear(c.removedSKUs)
	clear(c.promotionCodes)
	c.promotions.Clear()
	c.giftCerts = c.giftCerts[:0]
	c.giftCertsTotal = decimal.Zero
	clear(c.shippingPricing)
	c.shippingOptions = c.shippingOptions[:0]
	c.subtotalDiscount = decimal.Zero
	c.subtotalOverride = decimal.NullDecimal{}
	c.taxResult = tax.Result{}
}

// PricedLeaf is a leaf item with its share of the cart subtotal.
type PricedLeaf struct {
	Item  *Item
	Price money.Money
}

// ApportionedLeafItems flattens the cart into priced leaf items. Bundle
// roots are priced as a whole and their price is split across their leaves
// by the cart's Apportioner. Other items are priced individually, extended
// and net of their discounts.
func (c *Cart) ApportionedLeafItems() ([]PricedLeaf, error) {
	calc := ExtendedPriceCalc().WithCartDiscounts()
	visited := make(map[ItemID]struct{}, len(c.items))

	var out []PricedLeaf
	for _, id := range c.roots {
		root := c.items[id]
		if !root.IsBundle() {
			leaves, err := c.collect(root, visited, 0, false)
			if err != nil {
				return nil, err
			}
			for _, it := range leaves {
				out = append(out, PricedLeaf{Item: it, Price: calc.Calculate(it)})
			}
			continue
		}

		leaves, err := c.collect(root, visited, 0, true)
		if err != nil {
			return nil, err
		}
		if len(leaves) == 0 {
			out = append(out, PricedLeaf{Item: root, Price: calc.Calculate(root)})
			continue
		}
		priced, err := c.apportioner.ApportionBundle(root, calc.Calculate(root), leaves)
		if err != nil {
			return nil, errors.Wrapf(err, "apportion bundle %s", root.sku.Code)
		}
		out = append(out, priced...)
	}
	return out, nil
}

// leaves returns the leaf items ApportionedLeafItems would price.
func (c *Cart) leaves() ([]*Item, error) {
	visited := make(map[ItemID]struct{}, len(c.items))
	var out []*Item
	for _, id := range c.roots {
		root := c.items[id]
		leaves, err := c.collect(root, visited, 0, root.IsBundle())
		if err != nil {
			return nil, err
		}
		if len(leaves) == 0 {
			leaves = []*Item{root}
		}
		out = append(out, leaves...)
	}
	return out, nil
}

// collect walks it depth first. Inside a bundle only non-bundle leaves are
// returned; outside one every item prices itself, so the item and all of
// its dependents are returned.
func (c *Cart) collect(it *Item, visited map[ItemID]struct{}, depth int, inBundle bool) ([]*Item, error) {
	if depth > MaxBundleDepth {
		return nil, errors.Wrapf(ErrBundleCycle, "item %d nested deeper than %d", it.id, MaxBundleDepth)
	}
	if _, ok := visited[it.id]; ok {
		return nil, errors.Wrapf(ErrBundleCycle, "item %d visited twice", it.id)
	}
	visited[it.id] = struct{}{}

	var out []*Item
	if !inBundle {
		out = append(out, it)
	} else if len(it.children) == 0 && !it.IsBundle() {
		return []*Item{it}, nil
	}
	for _, childID := range it.children {
		child, ok := c.items[childID]
		if !ok {
			return nil, errors.Wrapf(ErrItemNotFound, "child %d of item %d", childID, it.id)
		}
		leaves, err := c.collect(child, visited, depth+1, inBundle)
		if err != nil {
			return nil, err
		}
		out = append(out, leaves...)
	}
	return out, nil
}
