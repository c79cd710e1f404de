package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services.
// Object fields resolve through the domain types' json tags.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	farmType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Farm",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"farmer_id":   &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"location":    &graphql.Field{Type: geoPointType},
			"flock_size":  &graphql.Field{Type: graphql.Int},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LocatedPoint",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"name":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
		},
	})

	candidateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Candidate",
		Fields: graphql.Fields{
			"point":       &graphql.Field{Type: pointType},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	reconcileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ReconcileResult",
		Fields: graphql.Fields{
			"match":        &graphql.Field{Type: pointType},
			"distance_km":  &graphql.Field{Type: graphql.Float},
			"confidence":   &graphql.Field{Type: graphql.Float},
			"alternatives": &graphql.Field{Type: graphql.NewList(candidateType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"farms": &graphql.Field{
				Type:        graphql.NewList(farmType),
				Description: "List all farms",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Farms.List(p.Context)
				},
			},
			"farm": &graphql.Field{
				Type:        farmType,
				Description: "Get a farm by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Farms.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"farmsNearby": &graphql.Field{
				Type:        graphql.NewList(farmType),
				Description: "Find farms near a location",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radiusKm": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 10.0},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Farms.Nearby(p.Context,
						p.Args["lat"].(float64), p.Args["lon"].(float64),
						p.Args["radiusKm"].(float64), p.Args["limit"].(int))
				},
			},
			"reconcile": &graphql.Field{
				Type:        reconcileType,
				Description: "Match a coordinate to the nearest farm",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return deps.Farms.Reconcile(p.Context, p.Args["lat"].(float64), p.Args["lon"].(float64))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
