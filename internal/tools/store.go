package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashutoshrp06/parcel-agent/internal/store"
	"github.com/ashutoshrp06/parcel-agent/internal/types"
)

// Store is the backend surface the store tools need. *store.Client
// implements it.
type Store interface {
	ListProducts(ctx context.Context) ([]types.Product, error)
	GetProduct(ctx context.Context, id int64) (*types.Product, error)
	CreateProduct(ctx context.Context, in types.ProductInput) (*types.Product, error)
	UpdateProduct(ctx context.Context, id int64, in types.ProductInput) (*types.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListCustomers(ctx context.Context) ([]types.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*types.Customer, error)
	CreateCustomer(ctx context.Context, in types.CustomerInput) (*types.Customer, error)
	ListOrders(ctx context.Context) ([]types.Order, error)
	CreateOrder(ctx context.Context, customerID, productID int64) (*types.Order, error)
}

// RegisterStoreTools registers the product, customer and order tools
// backed by s.
func RegisterStoreTools(r *Registry, s Store) error {
	defs := []struct {
		spec    Spec
		handler HandlerFunc
	}{
		{
			spec: Spec{
				Name:        "find_product",
				Description: "Find a product by name from the store catalog.",
				Parameters: []Parameter{
					{Name: "product_name", Type: TypeString, Description: "Name of the product to search for (e.g. 'Laptop', 'Wireless Keyboard')", Required: true},
				},
			},
			handler: findProduct(s),
		},
		{
			spec: Spec{
				Name:        "get_all_products",
				Description: "Get all products in the store catalog with id, name, description, price and stock.",
			},
			handler: getAllProducts(s),
		},
		{
			spec: Spec{
				Name:        "get_product_by_id",
				Description: "Get a single product by its ID.",
				Parameters: []Parameter{
					{Name: "product_id", Type: TypeInteger, Description: "The unique ID of the product", Required: true},
				},
			},
			handler: getProductByID(s),
		},
		{
			spec: Spec{
				Name:        "create_product",
				Description: "Create a new product in the store catalog.",
				Parameters: []Parameter{
					{Name: "name", Type: TypeString, Description: "Product name", Required: true},
					{Name: "price", Type: TypeNumber, Description: "Unit price", Required: true},
					{Name: "description", Type: TypeString, Description: "Product description"},
					{Name: "stock", Type: TypeInteger, Description: "Units in stock", Default: int64(0)},
				},
			},
			handler: createProduct(s),
		},
		{
			spec: Spec{
				Name:        "update_product",
				Description: "Update an existing product. Only the supplied fields are changed.",
				Parameters: []Parameter{
					{Name: "product_id", Type: TypeInteger, Description: "The unique ID of the product", Required: true},
					{Name: "name", Type: TypeString, Description: "New product name"},
					{Name: "price", Type: TypeNumber, Description: "New unit price"},
					{Name: "description", Type: TypeString, Description: "New description"},
					{Name: "stock", Type: TypeInteger, Description: "New stock level"},
				},
			},
			handler: updateProduct(s),
		},
		{
			spec: Spec{
				Name:        "delete_product",
				Description: "Delete a product from the store catalog.",
				Parameters: []Parameter{
					{Name: "product_id", Type: TypeInteger, Description: "The unique ID of the product", Required: true},
				},
			},
			handler: deleteProduct(s),
		},
		{
			spec: Spec{
				Name:        "find_customer",
				Description: "Find a customer by name from the store database.",
				Parameters: []Parameter{
					{Name: "customer_name", Type: TypeString, Description: "Name of the customer to search for (e.g. 'John Doe')", Required: true},
				},
			},
			handler: findCustomer(s),
		},
		{
			spec: Spec{
				Name:        "find_customer_by_email",
				Description: "Find a customer by email from the store database.",
				Parameters: []Parameter{
					{Name: "customer_email", Type: TypeString, Description: "Email of the customer to search for (e.g. 'john@example.com')", Required: true},
				},
			},
			handler: findCustomerByEmail(s),
		},
		{
			spec: Spec{
				Name:        "get_all_customers",
				Description: "Get all customers with id, name, email, phone and address.",
			},
			handler: getAllCustomers(s),
		},
		{
			spec: Spec{
				Name:        "get_customer_by_id",
				Description: "Get a single customer by their ID.",
				Parameters: []Parameter{
					{Name: "customer_id", Type: TypeInteger, Description: "The unique ID of the customer", Required: true},
				},
			},
			handler: getCustomerByID(s),
		},
		{
			spec: Spec{
				Name:        "create_customer",
				Description: "Create a new customer record.",
				Parameters: []Parameter{
					{Name: "name", Type: TypeString, Description: "Full name", Required: true},
					{Name: "email", Type: TypeString, Description: "Email address", Required: true},
					{Name: "phone", Type: TypeString, Description: "Phone number"},
					{Name: "address", Type: TypeString, Description: "Shipping address"},
				},
			},
			handler: createCustomer(s),
		},
		{
			spec: Spec{
				Name:        "get_all_orders",
				Description: "Get all orders with their customer, items and status.",
			},
			handler: getAllOrders(s),
		},
		{
			spec: Spec{
				Name:        "create_order",
				Description: "Create a new order for a customer.",
				Parameters: []Parameter{
					{Name: "customer_id", Type: TypeInteger, Description: "The unique ID of the customer placing the order", Required: true},
					{Name: "product_id", Type: TypeInteger, Description: "The unique ID of the product to order", Required: true},
				},
			},
			handler: createOrder(s),
		},
	}

	for _, d := range defs {
		if err := r.Register(d.spec, d.handler); err != nil {
			return err
		}
	}
	return nil
}

func findProduct(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		name := args.String("product_name")
		products, err := s.ListProducts(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch products: %w", err)
		}

		needle := strings.ToLower(name)
		for _, p := range products {
			if strings.Contains(strings.ToLower(p.Name), needle) {
				return map[string]any{"found": true, "product": p}, nil
			}
		}
		return map[string]any{"found": false, "error": fmt.Sprintf("Product '%s' not found", name)}, nil
	}
}

func getAllProducts(s Store) HandlerFunc {
	return func(ctx context.Context, _ Args) (any, error) {
		products, err := s.ListProducts(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch products: %w", err)
		}
		return map[string]any{"success": true, "products": products}, nil
	}
}

func getProductByID(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		id := args.Int("product_id")
		p, err := s.GetProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{"found": false, "error": fmt.Sprintf("Product with ID %d not found", id)}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetch product %d: %w", id, err)
		}
		return map[string]any{"found": true, "product": p}, nil
	}
}

func createProduct(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		in := productInput(args)
		p, err := s.CreateProduct(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("create product: %w", err)
		}
		return map[string]any{"success": true, "product": p}, nil
	}
}

func updateProduct(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		id := args.Int("product_id")
		p, err := s.UpdateProduct(ctx, id, productInput(args))
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{"success": false, "error": fmt.Sprintf("Product with ID %d not found", id)}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("update product %d: %w", id, err)
		}
		return map[string]any{"success": true, "product": p}, nil
	}
}

func deleteProduct(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		id := args.Int("product_id")
		err := s.DeleteProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{"success": false, "error": fmt.Sprintf("Product with ID %d not found", id)}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("delete product %d: %w", id, err)
		}
		return map[string]any{"success": true, "message": fmt.Sprintf("Product %d deleted", id)}, nil
	}
}

func findCustomer(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		name := args.String("customer_name")
		customers, err := s.ListCustomers(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch customers: %w", err)
		}

		needle := strings.ToLower(name)
		for _, c := range customers {
			if strings.Contains(strings.ToLower(c.Name), needle) {
				return map[string]any{"found": true, "customer": c}, nil
			}
		}
		return map[string]any{"found": false, "error": fmt.Sprintf("Customer '%s' not found", name)}, nil
	}
}

func findCustomerByEmail(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		email := strings.TrimSpace(args.String("customer_email"))
		customers, err := s.ListCustomers(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch customers: %w", err)
		}

		for _, c := range customers {
			if strings.EqualFold(email, c.Email) {
				return map[string]any{"found": true, "customer": c}, nil
			}
		}
		return map[string]any{"found": false, "error": fmt.Sprintf("Customer with email '%s' not found", email)}, nil
	}
}

func getAllCustomers(s Store) HandlerFunc {
	return func(ctx context.Context, _ Args) (any, error) {
		customers, err := s.ListCustomers(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch customers: %w", err)
		}
		return map[string]any{"success": true, "customers": customers}, nil
	}
}

func getCustomerByID(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		id := args.Int("customer_id")
		c, err := s.GetCustomer(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{"success": false, "error": fmt.Sprintf("Customer with ID %d not found", id)}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetch customer %d: %w", id, err)
		}
		return map[string]any{"success": true, "customer": c}, nil
	}
}

func createCustomer(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		c, err := s.CreateCustomer(ctx, types.CustomerInput{
			Name:    args.String("name"),
			Email:   args.String("email"),
			Phone:   args.String("phone"),
			Address: args.String("address"),
		})
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		return map[string]any{"success": true, "customer": c}, nil
	}
}

func getAllOrders(s Store) HandlerFunc {
	return func(ctx context.Context, _ Args) (any, error) {
		orders, err := s.ListOrders(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch orders: %w", err)
		}
		return map[string]any{"success": true, "orders": orders}, nil
	}
}

func createOrder(s Store) HandlerFunc {
	return func(ctx context.Context, args Args) (any, error) {
		order, err := s.CreateOrder(ctx, args.Int("customer_id"), args.Int("product_id"))
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{"success": false, "error": "Customer or product not found"}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		return map[string]any{"success": true, "order": order}, nil
	}
}

// productInput collects the product fields that were actually supplied.
func productInput(args Args) types.ProductInput {
	var in types.ProductInput
	if args.Has("name") {
		v := args.String("name")
		in.Name = &v
	}
	if args.Has("description") {
		v := args.String("description")
		in.Description = &v
	}
	if args.Has("price") {
		v := args.Float("price")
		in.Price = &v
	}
	if args.Has("stock") {
		v := int(args.Int("stock"))
		in.Stock = &v
	}
	return in
}
